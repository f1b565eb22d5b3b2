package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mak3-crm/internal/services"
)

type PipelineHandler struct {
	pipelines *services.PipelineService
}

func NewPipelineHandler(pipelines *services.PipelineService) *PipelineHandler {
	return &PipelineHandler{pipelines: pipelines}
}

func (h *PipelineHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	pipelines, err := h.pipelines.ListPipelines(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipelines)
}

func (h *PipelineHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pipeline, err := h.pipelines.GetPipeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline)
}

func (h *PipelineHandler) Create(c *gin.Context) {
	var in services.CreatePipelineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pipeline, err := h.pipelines.CreatePipeline(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pipeline)
}

func (h *PipelineHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdatePipelineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pipeline, err := h.pipelines.UpdatePipeline(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline)
}

func (h *PipelineHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pipeline, deactivated, err := h.pipelines.DeletePipeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if deactivated {
		c.JSON(http.StatusOK, gin.H{"message": "pipeline deactivated, deals still reference its stages", "pipeline": pipeline})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pipeline deleted"})
}

func (h *PipelineHandler) Stages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stages, err := h.pipelines.ListStages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *PipelineHandler) CreateStage(c *gin.Context) {
	var in services.CreateStageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := h.pipelines.CreateStage(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func (h *PipelineHandler) GetStage(c *gin.Context) {
	id, ok := idParam(c, "stageId")
	if !ok {
		return
	}
	stage, err := h.pipelines.GetStage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func (h *PipelineHandler) UpdateStage(c *gin.Context) {
	id, ok := idParam(c, "stageId")
	if !ok {
		return
	}
	var in services.UpdateStageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := h.pipelines.UpdateStage(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

func (h *PipelineHandler) DeleteStage(c *gin.Context) {
	id, ok := idParam(c, "stageId")
	if !ok {
		return
	}
	if err := h.pipelines.DeleteStage(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stage deleted"})
}

type reorderRequest struct {
	StageIDs []uint `json:"stageIds" binding:"required,min=1"`
}

// ReorderStages переставляет этапы воронки по переданному порядку id.
func (h *PipelineHandler) ReorderStages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stages, err := h.pipelines.ReorderStages(c.Request.Context(), id, req.StageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}
