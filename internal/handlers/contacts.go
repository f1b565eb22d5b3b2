package handlers

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
	"mak3-crm/internal/services"
)

// maxUploadSize ограничивает размер вложений и файлов импорта.
const maxUploadSize = 20 << 20

type ContactHandler struct {
	contacts *services.ContactService
	importer *services.ImportService
}

func NewContactHandler(contacts *services.ContactService, importer *services.ImportService) *ContactHandler {
	return &ContactHandler{contacts: contacts, importer: importer}
}

func (h *ContactHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	params := services.ContactListParams{
		Skip:         queryInt(c, "skip", 0),
		Take:         queryInt(c, "take", 0),
		Source:       models.ContactSource(c.Query("source")),
		StatusClient: models.ClientStatus(c.Query("statusClient")),
		Search:       c.Query("search"),
	}
	if raw := c.Query("isLead"); raw != "" {
		isLead, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperrors.Validation("isLead must be true or false"))
			return
		}
		params.IsLead = &isLead
	}

	list, err := h.contacts.List(c.Request.Context(), actor, params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ContactHandler) Get(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	var in services.CreateContactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.contacts.Create(c.Request.Context(), in, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) Update(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var patch models.ContactPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.contacts.Update(c.Request.Context(), id, patch, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Delete(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

func (h *ContactHandler) History(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	history, err := h.contacts.GetHistory(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ContactHandler) Comments(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	comments, err := h.contacts.GetComments(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ContactHandler) AddComment(c *gin.Context) {
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

	comment, err := h.contacts.AddComment(c.Request.Context(), id, req.Content, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *ContactHandler) Attachments(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	attachments, err := h.contacts.GetAttachments(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attachments)
}

func (h *ContactHandler) AddAttachment(c *gin.Context) {
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

	attachment, err := h.contacts.AddAttachment(c.Request.Context(), id, data, name, mimeType, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *ContactHandler) RemoveAttachment(c *gin.Context) {
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

	if err := h.contacts.RemoveAttachment(c.Request.Context(), id, attachmentID, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attachment deleted"})
}

// Search queries the full-text index, falling back to the database when the
// index is unavailable.
func (h *ContactHandler) Search(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondError(c, apperrors.Validation("query parameter q is required"))
		return
	}

	list, err := h.contacts.SearchIndexed(c.Request.Context(), actor, query, queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ContactHandler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, h.contacts.Sources())
}

func (h *ContactHandler) Statuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.contacts.Statuses())
}

// Import принимает CSV или Excel файл и создаёт контакты одной транзакцией.
func (h *ContactHandler) Import(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	data, name, _, err := readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var rows []map[string]string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = h.importer.ParseCSV(bytes.NewReader(data))
	case ".xlsx", ".xls":
		rows, err = h.importer.ParseExcel(data)
	default:
		respondError(c, apperrors.Validation("unsupported file format, expected .csv or .xlsx"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	dtos, err := h.importer.MapRows(rows)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.importer.Import(c.Request.Context(), dtos, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readUpload reads the multipart "file" field into memory.
func readUpload(c *gin.Context) (data []byte, name, mimeType string, err error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, "", "", apperrors.Validation("file is required")
	}
	if header.Size > maxUploadSize {
		return nil, "", "", apperrors.Validation("file is too large")
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", "", apperrors.Internal(err)
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return nil, "", "", apperrors.Internal(err)
	}
	return data, header.Filename, header.Header.Get("Content-Type"), nil
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
