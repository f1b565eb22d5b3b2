package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
)

// DashboardHandler отдаёт сводку по видимым пользователю данным.
type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type stageCount struct {
	StageID uint  `json:"stageId"`
	Count   int64 `json:"count"`
}

// Summary counts contacts and deals through the same ownership scopes the
// listings use, so the numbers always match what the user can open.
func (h *DashboardHandler) Summary(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	ctx := c.Request.Context()

	var totalContacts, leads int64
	if err := h.db.WithContext(ctx).Model(&models.Contact{}).
		Scopes(access.ContactScope(actor)).Count(&totalContacts).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Contact{}).
		Scopes(access.ContactScope(actor)).
		Where("is_lead = ?", true).Count(&leads).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}

	var totalDeals int64
	var totalAmount float64
	if err := h.db.WithContext(ctx).Model(&models.Deal{}).
		Scopes(access.DealScope(actor)).Count(&totalDeals).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Deal{}).
		Scopes(access.DealScope(actor)).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalAmount).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}

	var byStage []stageCount
	if err := h.db.WithContext(ctx).Model(&models.Deal{}).
		Scopes(access.DealScope(actor)).
		Select("stage_id AS stage_id, COUNT(*) AS count").
		Group("stage_id").
		Scan(&byStage).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contacts": gin.H{"total": totalContacts, "leads": leads},
		"deals":    gin.H{"total": totalDeals, "amount": totalAmount, "byStage": byStage},
	})
}
