package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/audit"
	"mak3-crm/internal/models"
	"mak3-crm/internal/search"
	"mak3-crm/internal/storage"
)

// ContactService orchestrates access checks, audit trail and persistence for
// contacts. All mutations go through here; nothing writes the tables directly.
type ContactService struct {
	db    *gorm.DB
	files storage.Storage
	index search.Indexer
	log   *slog.Logger
}

func NewContactService(db *gorm.DB, files storage.Storage, index search.Indexer, log *slog.Logger) *ContactService {
	return &ContactService{db: db, files: files, index: index, log: log}
}

type CreateContactInput struct {
	FirstName    string                `json:"firstName" binding:"required"`
	LastName     string                `json:"lastName" binding:"required"`
	MiddleName   string                `json:"middleName"`
	Phone        string                `json:"phone" binding:"required"`
	Email        *string               `json:"email" binding:"omitempty,email"`
	Source       models.ContactSource  `json:"source" binding:"required"`
	StatusClient models.ClientStatus   `json:"statusClient" binding:"required"`
	IsLead       *bool                 `json:"isLead"`
	Notes        string                `json:"notes"`
	AssignedToID *uint                 `json:"assignedToId"`
	PartnerID    *uint                 `json:"partnerId"`
}

// Create creates a contact. assignedToId defaults to the caller; a PARTNER
// caller without an explicit partnerId stamps their own id.
func (s *ContactService) Create(ctx context.Context, in CreateContactInput, actor access.Actor) (*models.Contact, error) {
	if d := access.AuthorizePartnerChange(actor, nil, in.PartnerID); !d.Allowed {
		return nil, apperrors.Forbidden(d.Reason)
	}
	partnerID := in.PartnerID
	if actor.Role == models.RolePartner && partnerID == nil {
		id := actor.ID
		partnerID = &id
	}

	assignedTo := in.AssignedToID
	if assignedTo == nil {
		id := actor.ID
		assignedTo = &id
	}

	isLead := true
	if in.IsLead != nil {
		isLead = *in.IsLead
	}

	contact := models.Contact{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		MiddleName:   in.MiddleName,
		Phone:        in.Phone,
		Email:        in.Email,
		Source:       in.Source,
		StatusClient: in.StatusClient,
		IsLead:       isLead,
		Notes:        in.Notes,
		AssignedToID: assignedTo,
		PartnerID:    partnerID,
	}

	db := s.db.WithContext(ctx)
	if err := checkContactUnique(db, contact.Phone, contact.Email, 0); err != nil {
		return nil, err
	}
	if err := db.Create(&contact).Error; err != nil {
		return nil, translateDuplicate(err, "contact with this phone or email already exists")
	}

	s.indexContact(ctx, &contact)
	return &contact, nil
}

type ContactListParams struct {
	Skip         int
	Take         int
	IsLead       *bool
	Source       models.ContactSource
	StatusClient models.ClientStatus
	Search       string
}

type ContactList struct {
	Items []models.Contact `json:"items"`
	Total int64            `json:"total"`
}

// List returns contacts visible to the actor. The ownership clause is ANDed
// with every caller filter, so search never widens visibility.
func (s *ContactService) List(ctx context.Context, actor access.Actor, params ContactListParams) (*ContactList, error) {
	take := params.Take
	if take <= 0 {
		take = 50
	}
	skip := params.Skip
	if skip < 0 {
		skip = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Contact{}).
		Scopes(access.ContactScope(actor), access.ContactSearch(params.Search))

	if params.IsLead != nil {
		q = q.Where("is_lead = ?", *params.IsLead)
	}
	if params.Source != "" {
		q = q.Where("source = ?", params.Source)
	}
	if params.StatusClient != "" {
		q = q.Where("status_client = ?", params.StatusClient)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	var contacts []models.Contact
	if err := q.Preload("AssignedTo").Preload("Partner").
		Order("created_at DESC").
		Offset(skip).Limit(take).
		Find(&contacts).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	return &ContactList{Items: contacts, Total: total}, nil
}

// SearchIndexed queries the full-text index and loads the matched rows through
// the actor's ownership scope. Without a configured index the LIKE search of
// List is the fallback.
func (s *ContactService) SearchIndexed(ctx context.Context, actor access.Actor, query string, limit int) (*ContactList, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := s.index.SearchContacts(ctx, query, limit)
	if err != nil {
		s.log.Warn("index search failed, falling back to database search", "error", err)
		ids = nil
	}
	if ids == nil {
		return s.List(ctx, actor, ContactListParams{Take: limit, Search: query})
	}
	if len(ids) == 0 {
		return &ContactList{Items: []models.Contact{}}, nil
	}

	var contacts []models.Contact
	err = s.db.WithContext(ctx).Model(&models.Contact{}).
		Scopes(access.ContactScope(actor)).
		Where("id IN ?", ids).
		Preload("AssignedTo").Preload("Partner").
		Find(&contacts).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	// сохраняем порядок релевантности из индекса
	rank := make(map[uint]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	sort.SliceStable(contacts, func(a, b int) bool {
		return rank[contacts[a].ID] < rank[contacts[b].ID]
	})

	return &ContactList{Items: contacts, Total: int64(len(contacts))}, nil
}

// Get loads a contact and authorizes read access against its persisted
// ownership. A missing id is NotFound before any Forbidden.
func (s *ContactService) Get(ctx context.Context, id uint, actor access.Actor) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).
		Preload("AssignedTo").Preload("Partner").
		First(&contact, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("contact", id)
		}
		return nil, apperrors.Internal(err)
	}

	if err := authorizeContact(&contact, actor, access.ActionRead); err != nil {
		return nil, err
	}
	return &contact, nil
}

// Update applies a partial patch. The ownership used for the decision is
// re-read here, never taken from the caller; the row update and its history
// records commit in one transaction.
func (s *ContactService) Update(ctx context.Context, id uint, patch models.ContactPatch, actor access.Actor) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).First(&contact, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("contact", id)
		}
		return nil, apperrors.Internal(err)
	}

	if err := authorizeContact(&contact, actor, access.ActionUpdate); err != nil {
		return nil, err
	}
	if d := access.AuthorizePartnerChange(actor, contact.PartnerID, patch.PartnerID); !d.Allowed {
		return nil, apperrors.Forbidden(d.Reason)
	}

	db := s.db.WithContext(ctx)
	if patch.Phone != nil || patch.Email != nil {
		phone := contact.Phone
		if patch.Phone != nil {
			phone = *patch.Phone
		}
		email := contact.Email
		if patch.Email != nil {
			email = patch.Email
		}
		if err := checkContactUnique(db, phone, email, contact.ID); err != nil {
			return nil, err
		}
	}

	changes := audit.Diff(contact.AuditFields(), patch.Fields())
	patch.Apply(&contact)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&contact).Error; err != nil {
			return translateDuplicate(err, "contact with this phone or email already exists")
		}
		for _, ch := range changes {
			record := models.ContactHistory{
				ContactID: contact.ID,
				Field:     ch.Field,
				OldValue:  ch.OldValue,
				NewValue:  ch.NewValue,
				ChangedBy: actor.ID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var de *apperrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, apperrors.Internal(err)
	}

	s.indexContact(ctx, &contact)
	return &contact, nil
}

// Delete hard-deletes a contact with its history, comments and attachments.
// Admin-only. Blob and index cleanup are best-effort after the transaction.
func (s *ContactService) Delete(ctx context.Context, id uint, actor access.Actor) error {
	var contact models.Contact
	err := s.db.WithContext(ctx).First(&contact, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("contact", id)
		}
		return apperrors.Internal(err)
	}

	if err := authorizeContact(&contact, actor, access.ActionDelete); err != nil {
		return err
	}

	var attachments []models.ContactAttachment
	if err := s.db.WithContext(ctx).Where("contact_id = ?", id).Find(&attachments).Error; err != nil {
		return apperrors.Internal(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", id).Delete(&models.ContactComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.ContactAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.ContactHistory{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Contact{}, id).Error
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	for _, a := range attachments {
		if err := s.files.Delete(ctx, a.Filename); err != nil {
			s.log.Error("failed to delete attachment blob", "contact_id", id, "filename", a.Filename, "error", err)
		}
	}
	if err := s.index.DeleteContact(ctx, id); err != nil {
		s.log.Warn("failed to remove contact from search index", "contact_id", id, "error", err)
	}
	return nil
}

// GetHistory returns the append-only change log, newest first.
func (s *ContactService) GetHistory(ctx context.Context, id uint, actor access.Actor) ([]models.ContactHistory, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var history []models.ContactHistory
	if err := s.db.WithContext(ctx).
		Where("contact_id = ?", id).
		Order("changed_at DESC").
		Find(&history).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return history, nil
}

func (s *ContactService) GetComments(ctx context.Context, id uint, actor access.Actor) ([]models.ContactComment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var comments []models.ContactComment
	if err := s.db.WithContext(ctx).
		Where("contact_id = ?", id).
		Order("created_at DESC").
		Find(&comments).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return comments, nil
}

func (s *ContactService) AddComment(ctx context.Context, id uint, content string, actor access.Actor) (*models.ContactComment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	comment := models.ContactComment{ContactID: id, Content: content, CreatedBy: actor.ID}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &comment, nil
}

func (s *ContactService) GetAttachments(ctx context.Context, id uint, actor access.Actor) ([]models.ContactAttachment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var attachments []models.ContactAttachment
	if err := s.db.WithContext(ctx).
		Where("contact_id = ?", id).
		Order("uploaded_at DESC").
		Find(&attachments).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return attachments, nil
}

// AddAttachment stores the blob, then the metadata row. Gated by the same
// read check as viewing the contact.
func (s *ContactService) AddAttachment(ctx context.Context, id uint, data []byte, originalName, mimeType string, actor access.Actor) (*models.ContactAttachment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}

	info, err := s.files.Upload(ctx, data, originalName, mimeType)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upload failed: %w", err))
	}

	attachment := models.ContactAttachment{
		ContactID:    id,
		Filename:     info.Filename,
		OriginalName: info.OriginalName,
		MimeType:     info.MimeType,
		Size:         info.Size,
		Path:         info.Path,
		UploadedBy:   actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &attachment, nil
}

// RemoveAttachment deletes the metadata row; the blob delete is best-effort
// so a dead storage backend cannot leave undeletable attachment records.
func (s *ContactService) RemoveAttachment(ctx context.Context, id, attachmentID uint, actor access.Actor) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}

	var attachment models.ContactAttachment
	err := s.db.WithContext(ctx).
		Where("id = ? AND contact_id = ?", attachmentID, id).
		First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("attachment", attachmentID)
		}
		return apperrors.Internal(err)
	}

	if err := s.db.WithContext(ctx).Delete(&attachment).Error; err != nil {
		return apperrors.Internal(err)
	}

	if err := s.files.Delete(ctx, attachment.Filename); err != nil {
		s.log.Error("failed to delete attachment blob", "contact_id", id, "filename", attachment.Filename, "error", err)
	}
	return nil
}

// CatalogEntry is a value/label pair for frontend dropdowns.
type CatalogEntry struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (s *ContactService) Sources() []CatalogEntry {
	return []CatalogEntry{
		{Value: string(models.SourcePartnerLeadWithHistory), Label: "Лид от партнера с историей"},
		{Value: string(models.SourcePartnerLeadNoHistory), Label: "Лид от партнера без истории"},
		{Value: string(models.SourceOwnLeadGen), Label: "Собственная генерация лидов"},
		{Value: string(models.SourceColdBase), Label: "Холодная база"},
		{Value: string(models.SourceExternalUpload), Label: "Внешняя загрузка"},
		{Value: string(models.SourcePurchasedBase), Label: "Купленная база"},
	}
}

func (s *ContactService) Statuses() []CatalogEntry {
	return []CatalogEntry{
		{Value: string(models.StatusNewNoProcessing), Label: "Новый, без обработки"},
		{Value: string(models.StatusPartnerLead), Label: "Лид от партнера"},
		{Value: string(models.StatusAuction), Label: "Аукцион"},
		{Value: string(models.StatusNotBoughtCompanyProcessing), Label: "Не выкуплен, в обработке компании"},
		{Value: string(models.StatusInProgress), Label: "В работе"},
		{Value: string(models.StatusSuccessful), Label: "Успешно завершен"},
		{Value: string(models.StatusDeclined), Label: "Отклонен"},
		{Value: string(models.StatusOnHold), Label: "На удержании"},
	}
}

func (s *ContactService) indexContact(ctx context.Context, contact *models.Contact) {
	if err := s.index.IndexContact(ctx, contact); err != nil {
		s.log.Warn("failed to index contact", "contact_id", contact.ID, "error", err)
	}
}

func authorizeContact(c *models.Contact, actor access.Actor, action access.Action) error {
	d := access.Authorize(actor, action, access.ResourceContact, access.Ownership{
		AssignedToID: c.AssignedToID,
		PartnerID:    c.PartnerID,
	})
	if !d.Allowed {
		return apperrors.Forbidden(d.Reason)
	}
	return nil
}

// checkContactUnique pre-checks phone/email uniqueness so a duplicate becomes
// a domain conflict instead of a raw constraint error.
func checkContactUnique(db *gorm.DB, phone string, email *string, excludeID uint) error {
	var count int64
	q := db.Model(&models.Contact{}).Where("phone = ?", phone)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Internal(err)
	}
	if count > 0 {
		return apperrors.Conflict("contact with this phone already exists")
	}

	if email != nil && *email != "" {
		q = db.Model(&models.Contact{}).Where("email = ?", *email)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return apperrors.Internal(err)
		}
		if count > 0 {
			return apperrors.Conflict("contact with this email already exists")
		}
	}
	return nil
}

func translateDuplicate(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict(msg)
	}
	return err
}
