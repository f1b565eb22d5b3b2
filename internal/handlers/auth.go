package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
)

const tokenTTL = 24 * time.Hour

// AuthHandler выдаёт и проверяет JWT для пользователей CRM.
type AuthHandler struct {
	db     *gorm.DB
	secret []byte
	log    *slog.Logger
}

func NewAuthHandler(db *gorm.DB, secret []byte, log *slog.Logger) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, log: log}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a regular USER account. Elevated roles are assigned by an
// administrator afterwards.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		respondError(c, apperrors.Internal(fmt.Errorf("check email: %w", err)))
		return
	}
	if count > 0 {
		respondError(c, apperrors.Conflict("user with this email already exists"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, apperrors.Internal(fmt.Errorf("hash password: %w", err)))
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperrors.Conflict("user with this email already exists"))
			return
		}
		respondError(c, apperrors.Internal(fmt.Errorf("create user: %w", err)))
		return
	}

	h.log.Info("user registered", "userId", user.ID, "email", user.Email)
	c.JSON(http.StatusCreated, user)
}

// Login checks the credentials and issues a signed token, both as a cookie
// and in the response body.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.Unauthorized("invalid email or password"))
			return
		}
		respondError(c, apperrors.Internal(fmt.Errorf("load user: %w", err)))
		return
	}
	if !user.IsActive {
		respondError(c, apperrors.Unauthorized("account is deactivated"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, apperrors.Unauthorized("invalid email or password"))
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		respondError(c, apperrors.Internal(fmt.Errorf("sign token: %w", err)))
		return
	}

	c.SetCookie(middleware.AuthCookieName, signed, int(tokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": signed, "user": user})
}

// Me returns the profile of the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}
	var user models.User
	if err := h.db.Preload("Partner").First(&user, actor.ID).Error; err != nil {
		respondError(c, apperrors.NotFound("user", actor.ID))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout clears the auth cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
