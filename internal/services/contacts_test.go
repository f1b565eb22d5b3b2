package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/models"
)

func TestContactCreate_Defaults(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact, err := svc.Create(ctx, CreateContactInput{
		FirstName:    "Пётр",
		LastName:     "Сидоров",
		Phone:        "+79990001122",
		Source:       models.SourceOwnLeadGen,
		StatusClient: models.StatusNewNoProcessing,
	}, userActor)
	require.NoError(t, err)

	require.NotNil(t, contact.AssignedToID)
	assert.Equal(t, userActor.ID, *contact.AssignedToID)
	assert.Nil(t, contact.PartnerID)
	assert.True(t, contact.IsLead)
}

func TestContactCreate_PartnerStampsOwnID(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact, err := svc.Create(ctx, CreateContactInput{
		FirstName:    "Пётр",
		LastName:     "Сидоров",
		Phone:        "+79990001123",
		Source:       models.SourcePartnerLeadNoHistory,
		StatusClient: models.StatusPartnerLead,
	}, partnerActor)
	require.NoError(t, err)

	require.NotNil(t, contact.PartnerID)
	assert.Equal(t, partnerActor.ID, *contact.PartnerID)
}

func TestContactCreate_ExplicitIsLeadFalse(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact, err := svc.Create(ctx, CreateContactInput{
		FirstName:    "Ольга",
		LastName:     "Кузнецова",
		Phone:        "+79990001130",
		Source:       models.SourceColdBase,
		StatusClient: models.StatusInProgress,
		IsLead:       boolPtr(false),
	}, userActor)
	require.NoError(t, err)
	assert.False(t, contact.IsLead)

	// перечитываем из базы: явный false должен сохраниться, а не
	// замениться значением по умолчанию
	var stored models.Contact
	require.NoError(t, db.First(&stored, contact.ID).Error)
	assert.False(t, stored.IsLead)
}

func TestContactCreate_ExplicitPartnerAdminOnly(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	in := CreateContactInput{
		FirstName:    "Пётр",
		LastName:     "Сидоров",
		Phone:        "+79990001124",
		Source:       models.SourceOwnLeadGen,
		StatusClient: models.StatusNewNoProcessing,
		PartnerID:    uintPtr(42),
	}

	_, err := svc.Create(ctx, in, partnerActor)
	assert.True(t, apperrors.IsForbidden(err))

	contact, err := svc.Create(ctx, in, adminActor)
	require.NoError(t, err)
	assert.Equal(t, uint(42), *contact.PartnerID)
}

func TestContactCreate_DuplicatePhone(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	seedContact(t, db, "+79990001125", uintPtr(userActor.ID), nil)

	_, err := svc.Create(ctx, CreateContactInput{
		FirstName:    "Пётр",
		LastName:     "Сидоров",
		Phone:        "+79990001125",
		Source:       models.SourceOwnLeadGen,
		StatusClient: models.StatusNewNoProcessing,
	}, userActor)
	assert.True(t, apperrors.IsConflict(err))
}

func TestContactList_ManagerSeesOnlyAssigned(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	seedContact(t, db, "+79990000001", uintPtr(managerActor.ID), nil)
	seedContact(t, db, "+79990000002", uintPtr(99), nil)
	seedContact(t, db, "+79990000003", nil, nil)

	list, err := svc.List(ctx, managerActor, ContactListParams{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, managerActor.ID, *list.Items[0].AssignedToID)
}

func TestContactList_SearchNeverWidensScope(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	foreign := seedContact(t, db, "+79990000004", uintPtr(99), nil)

	list, err := svc.List(ctx, userActor, ContactListParams{Search: foreign.FirstName})
	require.NoError(t, err)
	assert.Equal(t, int64(0), list.Total)
	assert.Empty(t, list.Items)
}

func TestContactList_Filters(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	lead := seedContact(t, db, "+79990000005", uintPtr(userActor.ID), nil)
	client := models.Contact{
		FirstName:    "Ольга",
		LastName:     "Кузнецова",
		Phone:        "+79990000006",
		Source:       models.SourceColdBase,
		StatusClient: models.StatusInProgress,
		IsLead:       false,
		AssignedToID: uintPtr(userActor.ID),
	}
	require.NoError(t, db.Create(&client).Error)

	list, err := svc.List(ctx, userActor, ContactListParams{IsLead: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, lead.ID, list.Items[0].ID)

	list, err = svc.List(ctx, userActor, ContactListParams{Source: models.SourceColdBase})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, client.ID, list.Items[0].ID)

	list, err = svc.List(ctx, userActor, ContactListParams{StatusClient: models.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, client.ID, list.Items[0].ID)
}

func TestContactGet_NotFoundBeforeForbidden(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	_, err := svc.Get(ctx, 12345, userActor)
	assert.True(t, apperrors.IsNotFound(err))

	foreign := seedContact(t, db, "+79990000007", uintPtr(99), nil)
	_, err = svc.Get(ctx, foreign.ID, userActor)
	assert.True(t, apperrors.IsForbidden(err))

	// одиночное чтение менеджером не ограничено владением
	got, err := svc.Get(ctx, foreign.ID, managerActor)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, got.ID)
}

func TestContactUpdate_WritesHistory(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000008", uintPtr(userActor.ID), nil)

	status := models.StatusInProgress
	updated, err := svc.Update(ctx, contact.ID, models.ContactPatch{StatusClient: &status}, userActor)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.StatusClient)

	var history []models.ContactHistory
	require.NoError(t, db.Where("contact_id = ?", contact.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "statusClient", history[0].Field)
	assert.Equal(t, string(models.StatusNewNoProcessing), history[0].OldValue)
	assert.Equal(t, string(models.StatusInProgress), history[0].NewValue)
	assert.Equal(t, userActor.ID, history[0].ChangedBy)

	// не тронутые патчем поля не меняются
	assert.Equal(t, contact.FirstName, updated.FirstName)
	assert.Equal(t, contact.Phone, updated.Phone)
}

func TestContactUpdate_NoChangeNoHistory(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000009", uintPtr(userActor.ID), nil)

	same := contact.StatusClient
	_, err := svc.Update(ctx, contact.ID, models.ContactPatch{StatusClient: &same}, userActor)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.ContactHistory{}).Where("contact_id = ?", contact.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestContactUpdate_PartnerChangeAdminOnly(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000010", uintPtr(userActor.ID), nil)

	_, err := svc.Update(ctx, contact.ID, models.ContactPatch{PartnerID: uintPtr(42)}, userActor)
	assert.True(t, apperrors.IsForbidden(err))

	updated, err := svc.Update(ctx, contact.ID, models.ContactPatch{PartnerID: uintPtr(42)}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, uint(42), *updated.PartnerID)

	var history []models.ContactHistory
	require.NoError(t, db.Where("contact_id = ? AND field = ?", contact.ID, "partnerId").Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "", history[0].OldValue)
	assert.Equal(t, "42", history[0].NewValue)
}

func TestContactUpdate_DuplicatePhoneRejected(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	seedContact(t, db, "+79990000011", uintPtr(userActor.ID), nil)
	second := seedContact(t, db, "+79990000012", uintPtr(userActor.ID), nil)

	_, err := svc.Update(ctx, second.ID, models.ContactPatch{Phone: strPtr("+79990000011")}, userActor)
	assert.True(t, apperrors.IsConflict(err))
}

func TestContactDelete_RoleMatrix(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000013", uintPtr(userActor.ID), uintPtr(partnerActor.ID))

	for _, actor := range []access.Actor{userActor, managerActor, partnerActor} {
		err := svc.Delete(ctx, contact.ID, actor)
		assert.True(t, apperrors.IsForbidden(err), "role %s must not delete contacts", actor.Role)
	}

	require.NoError(t, svc.Delete(ctx, contact.ID, adminActor))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Contact{}).Where("id = ?", contact.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestContactDelete_CascadesChildren(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000014", uintPtr(adminActor.ID), nil)

	_, err := svc.AddComment(ctx, contact.ID, "позвонить в четверг", adminActor)
	require.NoError(t, err)
	status := models.StatusInProgress
	_, err = svc.Update(ctx, contact.ID, models.ContactPatch{StatusClient: &status}, adminActor)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, contact.ID, adminActor))

	var comments, history int64
	require.NoError(t, db.Model(&models.ContactComment{}).Where("contact_id = ?", contact.ID).Count(&comments).Error)
	require.NoError(t, db.Model(&models.ContactHistory{}).Where("contact_id = ?", contact.ID).Count(&history).Error)
	assert.Equal(t, int64(0), comments)
	assert.Equal(t, int64(0), history)
}

func TestContactComments(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000015", uintPtr(userActor.ID), nil)

	comment, err := svc.AddComment(ctx, contact.ID, "первый звонок прошёл", userActor)
	require.NoError(t, err)
	assert.Equal(t, userActor.ID, comment.CreatedBy)

	comments, err := svc.GetComments(ctx, contact.ID, userActor)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "первый звонок прошёл", comments[0].Content)

	// чужой контакт — комментарии недоступны
	_, err = svc.GetComments(ctx, contact.ID, partnerActor)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestContactAttachments(t *testing.T) {
	db := openTestDB(t)
	svc := newContactService(t, db)
	ctx := context.Background()

	contact := seedContact(t, db, "+79990000016", uintPtr(userActor.ID), nil)

	attachment, err := svc.AddAttachment(ctx, contact.ID, []byte("%PDF-1.4"), "договор.pdf", "application/pdf", userActor)
	require.NoError(t, err)
	assert.Equal(t, "договор.pdf", attachment.OriginalName)
	assert.NotEmpty(t, attachment.Filename)

	attachments, err := svc.GetAttachments(ctx, contact.ID, userActor)
	require.NoError(t, err)
	require.Len(t, attachments, 1)

	require.NoError(t, svc.RemoveAttachment(ctx, contact.ID, attachment.ID, userActor))
	attachments, err = svc.GetAttachments(ctx, contact.ID, userActor)
	require.NoError(t, err)
	assert.Empty(t, attachments)
}

func TestContactCatalogs(t *testing.T) {
	svc := newContactService(t, openTestDB(t))

	sources := svc.Sources()
	assert.Len(t, sources, 6)
	statuses := svc.Statuses()
	assert.Len(t, statuses, 8)

	for _, entry := range append(sources, statuses...) {
		assert.NotEmpty(t, entry.Value)
		assert.NotEmpty(t, entry.Label)
	}
}
