package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/models"
)

// PipelineService manages pipelines and their stages. Role gating for these
// admin operations happens at the router; here only invariants are enforced.
type PipelineService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewPipelineService(db *gorm.DB, log *slog.Logger) *PipelineService {
	return &PipelineService{db: db, log: log}
}

type CreatePipelineInput struct {
	Name string `json:"name" binding:"required"`
}

func (s *PipelineService) CreatePipeline(ctx context.Context, in CreatePipelineInput) (*models.Pipeline, error) {
	pipeline := models.Pipeline{Name: in.Name, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&pipeline).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &pipeline, nil
}

func (s *PipelineService) ListPipelines(ctx context.Context, includeInactive bool) ([]models.Pipeline, error) {
	q := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_order ASC") })
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var pipelines []models.Pipeline
	if err := q.Find(&pipelines).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return pipelines, nil
}

func (s *PipelineService) GetPipeline(ctx context.Context, id uint) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_order ASC") }).
		First(&pipeline, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("pipeline", id)
		}
		return nil, apperrors.Internal(err)
	}
	return &pipeline, nil
}

type UpdatePipelineInput struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

func (s *PipelineService) UpdatePipeline(ctx context.Context, id uint, in UpdatePipelineInput) (*models.Pipeline, error) {
	pipeline, err := s.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		pipeline.Name = *in.Name
	}
	if in.IsActive != nil {
		pipeline.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Save(pipeline).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return pipeline, nil
}

// DeletePipeline removes a pipeline with its stages. When any stage still
// carries deals the pipeline is deactivated instead, keeping references valid;
// the second return value reports which of the two happened.
func (s *PipelineService) DeletePipeline(ctx context.Context, id uint) (*models.Pipeline, bool, error) {
	pipeline, err := s.GetPipeline(ctx, id)
	if err != nil {
		return nil, false, err
	}

	var dealCount int64
	err = s.db.WithContext(ctx).Model(&models.Deal{}).
		Joins("JOIN pipeline_stages ON pipeline_stages.id = deals.stage_id").
		Where("pipeline_stages.pipeline_id = ?", id).
		Count(&dealCount).Error
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}

	if dealCount > 0 {
		pipeline.IsActive = false
		if err := s.db.WithContext(ctx).Save(pipeline).Error; err != nil {
			return nil, false, apperrors.Internal(err)
		}
		s.log.Info("pipeline deactivated instead of deleted", "pipeline_id", id, "deals", dealCount)
		return pipeline, true, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("pipeline_id = ?", id).Delete(&models.PipelineStage{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Pipeline{}, id).Error
	})
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}
	return pipeline, false, nil
}

type CreateStageInput struct {
	PipelineID uint   `json:"pipelineId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Order      int    `json:"order" binding:"min=0"`
	Color      string `json:"color"`
}

func (s *PipelineService) CreateStage(ctx context.Context, in CreateStageInput) (*models.PipelineStage, error) {
	if _, err := s.GetPipeline(ctx, in.PipelineID); err != nil {
		return nil, err
	}
	stage := models.PipelineStage{
		PipelineID: in.PipelineID,
		Name:       in.Name,
		Order:      in.Order,
		Color:      in.Color,
	}
	if err := s.db.WithContext(ctx).Create(&stage).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &stage, nil
}

func (s *PipelineService) ListStages(ctx context.Context, pipelineID uint) ([]models.PipelineStage, error) {
	if _, err := s.GetPipeline(ctx, pipelineID); err != nil {
		return nil, err
	}
	var stages []models.PipelineStage
	if err := s.db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("stage_order ASC").
		Find(&stages).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return stages, nil
}

func (s *PipelineService) GetStage(ctx context.Context, id uint) (*models.PipelineStage, error) {
	var stage models.PipelineStage
	err := s.db.WithContext(ctx).First(&stage, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("pipeline stage", id)
		}
		return nil, apperrors.Internal(err)
	}
	return &stage, nil
}

type UpdateStageInput struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *PipelineService) UpdateStage(ctx context.Context, id uint, in UpdateStageInput) (*models.PipelineStage, error) {
	stage, err := s.GetStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		stage.Name = *in.Name
	}
	if in.Color != nil {
		stage.Color = *in.Color
	}
	if err := s.db.WithContext(ctx).Save(stage).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return stage, nil
}

// DeleteStage refuses to delete a stage that still has deals on it.
func (s *PipelineService) DeleteStage(ctx context.Context, id uint) error {
	if _, err := s.GetStage(ctx, id); err != nil {
		return err
	}

	var dealCount int64
	if err := s.db.WithContext(ctx).Model(&models.Deal{}).Where("stage_id = ?", id).Count(&dealCount).Error; err != nil {
		return apperrors.Internal(err)
	}
	if dealCount > 0 {
		return apperrors.Conflict(fmt.Sprintf(
			"cannot delete stage: %d deals reference it, move them to another stage first", dealCount))
	}

	if err := s.db.WithContext(ctx).Unscoped().Delete(&models.PipelineStage{}, id).Error; err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ReorderStages validates that every id belongs to the pipeline, then assigns
// dense zero-based order values matching array position in one transaction,
// so a partial reordering is never observable.
func (s *PipelineService) ReorderStages(ctx context.Context, pipelineID uint, stageIDs []uint) ([]models.PipelineStage, error) {
	if _, err := s.GetPipeline(ctx, pipelineID); err != nil {
		return nil, err
	}

	var stages []models.PipelineStage
	if err := s.db.WithContext(ctx).Where("pipeline_id = ?", pipelineID).Find(&stages).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	known := make(map[uint]struct{}, len(stages))
	for _, st := range stages {
		known[st.ID] = struct{}{}
	}
	for _, id := range stageIDs {
		if _, ok := known[id]; !ok {
			return nil, apperrors.Conflict(fmt.Sprintf(
				"stage %d does not belong to pipeline %d", id, pipelineID))
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, id := range stageIDs {
			err := tx.Model(&models.PipelineStage{}).
				Where("id = ?", id).
				Update("stage_order", idx).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return s.ListStages(ctx, pipelineID)
}
