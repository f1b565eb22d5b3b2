package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
)

// UserHandler — административное управление пользователями и ролями.
type UserHandler struct {
	db  *gorm.DB
	rdb *redis.Client
	log *slog.Logger
}

func NewUserHandler(db *gorm.DB, rdb *redis.Client, log *slog.Logger) *UserHandler {
	return &UserHandler{db: db, rdb: rdb, log: log}
}

func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.db.Preload("Partner").Order("created_at DESC").Find(&users).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var user models.User
	if err := h.db.Preload("Partner").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.NotFound("user", id))
			return
		}
		respondError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	FirstName *string          `json:"firstName"`
	LastName  *string          `json:"lastName"`
	Role      *models.UserRole `json:"role"`
	PartnerID *uint            `json:"partnerId"`
	IsActive  *bool            `json:"isActive"`
}

var validRoles = map[models.UserRole]bool{
	models.RoleAdmin:           true,
	models.RoleManager:         true,
	models.RolePartner:         true,
	models.RolePartnerEmployee: true,
	models.RoleUser:            true,
}

// Update changes profile and role fields. A role or partner change drops the
// cached actor so the next request sees the new permissions.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != nil && !validRoles[*req.Role] {
		respondError(c, apperrors.Validation("unknown role: "+string(*req.Role)))
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.NotFound("user", id))
			return
		}
		respondError(c, apperrors.Internal(err))
		return
	}

	accessChanged := false
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil && *req.Role != user.Role {
		user.Role = *req.Role
		accessChanged = true
	}
	if req.PartnerID != nil {
		user.PartnerID = req.PartnerID
		accessChanged = true
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		user.IsActive = *req.IsActive
		accessChanged = true
	}

	if err := h.db.Save(&user).Error; err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	if accessChanged {
		middleware.InvalidateActorCache(c, h.rdb, user.ID)
		h.log.Info("user access changed", "userId", user.ID, "role", user.Role)
	}
	c.JSON(http.StatusOK, user)
}
