package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleAdmin           UserRole = "ADMIN"
	RoleManager         UserRole = "MANAGER"
	RolePartner         UserRole = "PARTNER"
	RolePartnerEmployee UserRole = "PARTNER_EMPLOYEE"
	RoleUser            UserRole = "USER"
)

type User struct {
	gorm.Model
	Email        string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string   `json:"-" gorm:"not null"`
	FirstName    string   `json:"firstName" gorm:"size:100"`
	LastName     string   `json:"lastName" gorm:"size:100"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null"`

	// для PARTNER_EMPLOYEE — ссылка на партнёра, к которому он относится
	PartnerID *uint    `json:"partnerId"`
	Partner   *Partner `json:"partner,omitempty"`

	IsActive bool `json:"isActive"`
}
