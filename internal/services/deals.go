package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/audit"
	"mak3-crm/internal/models"
	"mak3-crm/internal/storage"
)

type DealService struct {
	db    *gorm.DB
	files storage.Storage
	log   *slog.Logger
}

func NewDealService(db *gorm.DB, files storage.Storage, log *slog.Logger) *DealService {
	return &DealService{db: db, files: files, log: log}
}

type CreateDealInput struct {
	Title        string  `json:"title" binding:"required"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	StageID      uint    `json:"stageId" binding:"required"`
	ContactID    uint    `json:"contactId" binding:"required"`
	AssignedToID *uint   `json:"assignedToId"`
	PartnerID    *uint   `json:"partnerId"`
}

// Create validates the stage and contact references, then creates the deal.
// assignedToId defaults to the caller.
func (s *DealService) Create(ctx context.Context, in CreateDealInput, actor access.Actor) (*models.Deal, error) {
	if d := access.AuthorizePartnerChange(actor, nil, in.PartnerID); !d.Allowed {
		return nil, apperrors.Forbidden(d.Reason)
	}

	db := s.db.WithContext(ctx)
	if err := requireStage(db, in.StageID); err != nil {
		return nil, err
	}
	if err := requireContact(db, in.ContactID); err != nil {
		return nil, err
	}

	partnerID := in.PartnerID
	if actor.Role == models.RolePartner && partnerID == nil {
		partnerID = actor.PartnerAnchor()
	}

	assignedTo := in.AssignedToID
	if assignedTo == nil {
		id := actor.ID
		assignedTo = &id
	}

	deal := models.Deal{
		Title:        in.Title,
		Amount:       in.Amount,
		Description:  in.Description,
		StageID:      in.StageID,
		ContactID:    in.ContactID,
		AssignedToID: assignedTo,
		PartnerID:    partnerID,
	}
	if err := db.Create(&deal).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &deal, nil
}

type DealListParams struct {
	Page         int
	Limit        int
	StageID      uint
	ContactID    uint
	AssignedToID uint
	PartnerID    uint
}

type DealList struct {
	Items []models.Deal `json:"items"`
	Total int64         `json:"total"`
}

// List returns deals visible to the actor, most recently updated first.
func (s *DealService) List(ctx context.Context, actor access.Actor, params DealListParams) (*DealList, error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	q := s.db.WithContext(ctx).Model(&models.Deal{}).Scopes(access.DealScope(actor))

	if params.StageID != 0 {
		q = q.Where("stage_id = ?", params.StageID)
	}
	if params.ContactID != 0 {
		q = q.Where("contact_id = ?", params.ContactID)
	}
	if params.AssignedToID != 0 {
		q = q.Where("assigned_to_id = ?", params.AssignedToID)
	}
	if params.PartnerID != 0 {
		q = q.Where("partner_id = ?", params.PartnerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	var deals []models.Deal
	if err := q.Preload("Stage").Preload("Contact").Preload("AssignedTo").Preload("Partner").
		Order("updated_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&deals).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	return &DealList{Items: deals, Total: total}, nil
}

func (s *DealService) Get(ctx context.Context, id uint, actor access.Actor) (*models.Deal, error) {
	var deal models.Deal
	err := s.db.WithContext(ctx).
		Preload("Stage").Preload("Contact").Preload("AssignedTo").Preload("Partner").
		First(&deal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("deal", id)
		}
		return nil, apperrors.Internal(err)
	}

	if err := authorizeDeal(&deal, actor, access.ActionRead); err != nil {
		return nil, err
	}
	return &deal, nil
}

// Update applies a partial patch, re-validating any changed stage/contact
// reference, and commits the row update with its history records atomically.
func (s *DealService) Update(ctx context.Context, id uint, patch models.DealPatch, actor access.Actor) (*models.Deal, error) {
	var deal models.Deal
	err := s.db.WithContext(ctx).First(&deal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("deal", id)
		}
		return nil, apperrors.Internal(err)
	}

	if err := authorizeDeal(&deal, actor, access.ActionUpdate); err != nil {
		return nil, err
	}
	if d := access.AuthorizePartnerChange(actor, deal.PartnerID, patch.PartnerID); !d.Allowed {
		return nil, apperrors.Forbidden(d.Reason)
	}

	db := s.db.WithContext(ctx)
	if patch.StageID != nil && *patch.StageID != deal.StageID {
		if err := requireStage(db, *patch.StageID); err != nil {
			return nil, err
		}
	}
	if patch.ContactID != nil && *patch.ContactID != deal.ContactID {
		if err := requireContact(db, *patch.ContactID); err != nil {
			return nil, err
		}
	}

	changes := audit.Diff(deal.AuditFields(), patch.Fields())
	patch.Apply(&deal)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&deal).Error; err != nil {
			return err
		}
		for _, ch := range changes {
			record := models.DealHistory{
				DealID:    deal.ID,
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
		return nil, apperrors.Internal(err)
	}
	return &deal, nil
}

// Delete hard-deletes a deal and cascades to its comments, attachments and
// history in one transaction. Admin and manager only.
func (s *DealService) Delete(ctx context.Context, id uint, actor access.Actor) error {
	var deal models.Deal
	err := s.db.WithContext(ctx).First(&deal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("deal", id)
		}
		return apperrors.Internal(err)
	}

	if err := authorizeDeal(&deal, actor, access.ActionDelete); err != nil {
		return err
	}

	var attachments []models.DealAttachment
	if err := s.db.WithContext(ctx).Where("deal_id = ?", id).Find(&attachments).Error; err != nil {
		return apperrors.Internal(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deal_id = ?", id).Delete(&models.DealComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", id).Delete(&models.DealAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", id).Delete(&models.DealHistory{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Deal{}, id).Error
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	for _, a := range attachments {
		if err := s.files.Delete(ctx, a.Filename); err != nil {
			s.log.Error("failed to delete attachment blob", "deal_id", id, "filename", a.Filename, "error", err)
		}
	}
	return nil
}

func (s *DealService) GetHistory(ctx context.Context, id uint, actor access.Actor) ([]models.DealHistory, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var history []models.DealHistory
	if err := s.db.WithContext(ctx).
		Where("deal_id = ?", id).
		Order("changed_at DESC").
		Find(&history).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return history, nil
}

func (s *DealService) GetComments(ctx context.Context, id uint, actor access.Actor) ([]models.DealComment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var comments []models.DealComment
	if err := s.db.WithContext(ctx).
		Where("deal_id = ?", id).
		Order("created_at DESC").
		Find(&comments).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return comments, nil
}

func (s *DealService) AddComment(ctx context.Context, id uint, content string, actor access.Actor) (*models.DealComment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	comment := models.DealComment{DealID: id, Content: content, CreatedBy: actor.ID}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &comment, nil
}

func (s *DealService) GetAttachments(ctx context.Context, id uint, actor access.Actor) ([]models.DealAttachment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	var attachments []models.DealAttachment
	if err := s.db.WithContext(ctx).
		Where("deal_id = ?", id).
		Order("uploaded_at DESC").
		Find(&attachments).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return attachments, nil
}

func (s *DealService) AddAttachment(ctx context.Context, id uint, data []byte, originalName, mimeType string, actor access.Actor) (*models.DealAttachment, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}

	info, err := s.files.Upload(ctx, data, originalName, mimeType)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upload failed: %w", err))
	}

	attachment := models.DealAttachment{
		DealID:       id,
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

func (s *DealService) RemoveAttachment(ctx context.Context, id, attachmentID uint, actor access.Actor) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}

	var attachment models.DealAttachment
	err := s.db.WithContext(ctx).
		Where("id = ? AND deal_id = ?", attachmentID, id).
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
		s.log.Error("failed to delete attachment blob", "deal_id", id, "filename", attachment.Filename, "error", err)
	}
	return nil
}

func authorizeDeal(d *models.Deal, actor access.Actor, action access.Action) error {
	decision := access.Authorize(actor, action, access.ResourceDeal, access.Ownership{
		AssignedToID: d.AssignedToID,
		PartnerID:    d.PartnerID,
	})
	if !decision.Allowed {
		return apperrors.Forbidden(decision.Reason)
	}
	return nil
}

// requireStage turns a missing pipeline stage into a validation error.
func requireStage(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.PipelineStage{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Internal(err)
	}
	if count == 0 {
		return apperrors.Validation(fmt.Sprintf("pipeline stage with id %d does not exist", id))
	}
	return nil
}

func requireContact(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.Contact{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Internal(err)
	}
	if count == 0 {
		return apperrors.Validation(fmt.Sprintf("contact with id %d does not exist", id))
	}
	return nil
}
