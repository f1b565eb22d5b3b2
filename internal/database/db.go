package database

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mak3-crm/internal/models"
)

// Open connects to postgres with a retry loop: in container deployments the
// database regularly comes up after the app.
func Open(dsn string, log *slog.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	const maxAttempts = 10
	for i := 1; i <= maxAttempts; i++ {
		log.Info("connecting to database", "attempt", i, "max", maxAttempts)

		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			log.Info("connected to database")
			return db, nil
		}

		log.Warn("failed to connect to database", "error", err)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, err)
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Partner{},
		&models.Contact{},
		&models.ContactHistory{},
		&models.ContactComment{},
		&models.ContactAttachment{},
		&models.Pipeline{},
		&models.PipelineStage{},
		&models.Deal{},
		&models.DealHistory{},
		&models.DealComment{},
		&models.DealAttachment{},
	)
}

// SeedAdmin создаёт дефолтного администратора, если админов ещё нет.
func SeedAdmin(db *gorm.DB, email, password string, log *slog.Logger) error {
	if email == "" {
		email = "admin@mak3.local"
	}
	if password == "" {
		password = "Admin123!"
	}

	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash default admin password: %w", err)
	}

	admin := models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	log.Info("created default admin user", "email", email)
	return nil
}
