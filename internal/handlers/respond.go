package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mak3-crm/internal/apperrors"
)

var statusByCode = map[string]int{
	apperrors.CodeNotFound:     http.StatusNotFound,
	apperrors.CodeForbidden:    http.StatusForbidden,
	apperrors.CodeConflict:     http.StatusConflict,
	apperrors.CodeValidation:   http.StatusBadRequest,
	apperrors.CodeUnauthorized: http.StatusUnauthorized,
	apperrors.CodeInternal:     http.StatusInternalServerError,
}

// respondError maps a domain error to its HTTP status. Internal details are
// logged, never sent to the client.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	var de *apperrors.Error
	msg := "request failed"
	if errors.As(err, &de) {
		msg = de.Message
	}
	c.JSON(status, gin.H{"error": msg})
}

// idParam parses a positive uint path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id: " + raw})
		return 0, false
	}
	return uint(id), true
}
