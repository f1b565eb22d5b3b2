package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/models"
)

func TestDealCreate_ValidatesReferences(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая", "В работе")
	contact := seedContact(t, db, "+79991110001", uintPtr(userActor.ID), nil)

	_, err := svc.Create(ctx, CreateDealInput{
		Title: "Сделка", StageID: 999, ContactID: contact.ID,
	}, userActor)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(ctx, CreateDealInput{
		Title: "Сделка", StageID: stages[0].ID, ContactID: 999,
	}, userActor)
	assert.True(t, apperrors.IsValidation(err))

	deal, err := svc.Create(ctx, CreateDealInput{
		Title: "Сделка", Amount: 50000, StageID: stages[0].ID, ContactID: contact.ID,
	}, userActor)
	require.NoError(t, err)
	assert.Equal(t, userActor.ID, *deal.AssignedToID)
}

func TestDealCreate_PartnerAnchor(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110002", nil, uintPtr(partnerActor.ID))

	deal, err := svc.Create(ctx, CreateDealInput{
		Title: "Партнёрская сделка", StageID: stages[0].ID, ContactID: contact.ID,
	}, partnerActor)
	require.NoError(t, err)

	require.NotNil(t, deal.PartnerID)
	assert.Equal(t, partnerActor.ID, *deal.PartnerID)
}

func TestDealList_ManagerUnrestricted(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110003", nil, nil)

	seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(managerActor.ID), nil)
	seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(99), nil)
	seedDeal(t, db, stages[0].ID, contact.ID, nil, uintPtr(7))

	// менеджер видит все сделки, в отличие от контактов
	list, err := svc.List(ctx, managerActor, DealListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)

	// обычный пользователь — только свои
	userList, err := svc.List(ctx, access.Actor{ID: 99, Role: models.RoleUser}, DealListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), userList.Total)

	// партнёр — по якорю partnerId
	partnerList, err := svc.List(ctx, partnerActor, DealListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), partnerList.Total)
}

func TestDealList_Filters(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая", "В работе")
	contact := seedContact(t, db, "+79991110004", nil, nil)
	other := seedContact(t, db, "+79991110005", nil, nil)

	seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(adminActor.ID), nil)
	target := seedDeal(t, db, stages[1].ID, other.ID, uintPtr(adminActor.ID), nil)

	list, err := svc.List(ctx, adminActor, DealListParams{StageID: stages[1].ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, target.ID, list.Items[0].ID)

	list, err = svc.List(ctx, adminActor, DealListParams{ContactID: other.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, target.ID, list.Items[0].ID)
}

func TestDealUpdate_StageChangeWritesOneHistoryRow(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая", "В работе")
	contact := seedContact(t, db, "+79991110006", uintPtr(userActor.ID), nil)
	deal := seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(userActor.ID), nil)

	updated, err := svc.Update(ctx, deal.ID, models.DealPatch{StageID: &stages[1].ID}, userActor)
	require.NoError(t, err)
	assert.Equal(t, stages[1].ID, updated.StageID)

	var history []models.DealHistory
	require.NoError(t, db.Where("deal_id = ?", deal.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "stageId", history[0].Field)
	assert.Equal(t, strconv.FormatUint(uint64(stages[0].ID), 10), history[0].OldValue)
	assert.Equal(t, strconv.FormatUint(uint64(stages[1].ID), 10), history[0].NewValue)
}

func TestDealUpdate_InvalidStageRejected(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110007", uintPtr(userActor.ID), nil)
	deal := seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(userActor.ID), nil)

	bad := uint(999)
	_, err := svc.Update(ctx, deal.ID, models.DealPatch{StageID: &bad}, userActor)
	assert.True(t, apperrors.IsValidation(err))

	var count int64
	require.NoError(t, db.Model(&models.DealHistory{}).Where("deal_id = ?", deal.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDealUpdate_OwnershipEnforced(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110008", nil, nil)
	deal := seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(99), nil)

	_, err := svc.Update(ctx, deal.ID, models.DealPatch{Title: strPtr("Чужая")}, userActor)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.Update(ctx, 4242, models.DealPatch{Title: strPtr("Нет такой")}, userActor)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDealDelete_ManagerAllowed(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110009", nil, nil)
	deal := seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(userActor.ID), nil)

	// владелец-пользователь удалить не может, менеджер — может
	err := svc.Delete(ctx, deal.ID, userActor)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.AddComment(ctx, deal.ID, "обсудили условия", managerActor)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, deal.ID, managerActor))

	var deals, comments int64
	require.NoError(t, db.Unscoped().Model(&models.Deal{}).Where("id = ?", deal.ID).Count(&deals).Error)
	require.NoError(t, db.Model(&models.DealComment{}).Where("deal_id = ?", deal.ID).Count(&comments).Error)
	assert.Equal(t, int64(0), deals)
	assert.Equal(t, int64(0), comments)
}

func TestDealHistoryVisibility(t *testing.T) {
	db := openTestDB(t)
	svc := newDealService(t, db)
	ctx := context.Background()

	_, stages := seedPipeline(t, db, "Новая")
	contact := seedContact(t, db, "+79991110010", nil, nil)
	deal := seedDeal(t, db, stages[0].ID, contact.ID, uintPtr(userActor.ID), nil)

	_, err := svc.Update(ctx, deal.ID, models.DealPatch{Amount: floatPtr(99000)}, userActor)
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, deal.ID, userActor)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "amount", history[0].Field)

	_, err = svc.GetHistory(ctx, deal.ID, access.Actor{ID: 77, Role: models.RoleUser})
	assert.True(t, apperrors.IsForbidden(err))
}
