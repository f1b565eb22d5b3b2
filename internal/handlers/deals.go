package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
	"mak3-crm/internal/services"
)

type DealHandler struct {
	deals *services.DealService
}

func NewDealHandler(deals *services.DealService) *DealHandler {
	return &DealHandler{deals: deals}
}

func (h *DealHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	params := services.DealListParams{
		Page:         queryInt(c, "page", 0),
		Limit:        queryInt(c, "limit", 0),
		StageID:      uint(queryInt(c, "stageId", 0)),
		ContactID:    uint(queryInt(c, "contactId", 0)),
		AssignedToID: uint(queryInt(c, "assignedToId", 0)),
		PartnerID:    uint(queryInt(c, "partnerId", 0)),
	}

	list, err := h.deals.List(c.Request.Context(), actor, params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *DealHandler) Get(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	deal, err := h.deals.Get(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *DealHandler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	var in services.CreateDealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deal, err := h.deals.Create(c.Request.Context(), in, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deal)
}

func (h *DealHandler) Update(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var patch models.DealPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deal, err := h.deals.Update(c.Request.Context(), id, patch, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *DealHandler) Delete(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.deals.Delete(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deal deleted"})
}

func (h *DealHandler) History(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	history, err := h.deals.GetHistory(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *DealHandler) Comments(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	comments, err := h.deals.GetComments(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *DealHandler) AddComment(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.deals.AddComment(c.Request.Context(), id, req.Content, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *DealHandler) Attachments(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	attachments, err := h.deals.GetAttachments(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attachments)
}

func (h *DealHandler) AddAttachment(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	data, name, mimeType, err := readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}

	attachment, err := h.deals.AddAttachment(c.Request.Context(), id, data, name, mimeType, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *DealHandler) RemoveAttachment(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := idParam(c, "attachmentId")
	if !ok {
		return
	}

	if err := h.deals.RemoveAttachment(c.Request.Context(), id, attachmentID, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attachment deleted"})
}
