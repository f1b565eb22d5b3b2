package services

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mak3-crm/internal/access"
	"mak3-crm/internal/database"
	"mak3-crm/internal/models"
	"mak3-crm/internal/search"
	"mak3-crm/internal/storage"
)

// openTestDB создаёт отдельную in-memory базу на каждый тест.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newContactService(t *testing.T, db *gorm.DB) *ContactService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewContactService(db, files, search.NoopIndexer{}, testLogger())
}

func newDealService(t *testing.T, db *gorm.DB) *DealService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewDealService(db, files, testLogger())
}

func uintPtr(v uint) *uint        { return &v }
func strPtr(s string) *string     { return &s }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func seedContact(t *testing.T, db *gorm.DB, phone string, assignedTo, partnerID *uint) models.Contact {
	t.Helper()
	contact := models.Contact{
		FirstName:    "Анна",
		LastName:     "Иванова",
		Phone:        phone,
		Source:       models.SourceOwnLeadGen,
		StatusClient: models.StatusNewNoProcessing,
		IsLead:       true,
		AssignedToID: assignedTo,
		PartnerID:    partnerID,
	}
	require.NoError(t, db.Create(&contact).Error)
	return contact
}

func seedPipeline(t *testing.T, db *gorm.DB, stageNames ...string) (models.Pipeline, []models.PipelineStage) {
	t.Helper()
	pipeline := models.Pipeline{Name: "Продажи", IsActive: true}
	require.NoError(t, db.Create(&pipeline).Error)

	stages := make([]models.PipelineStage, 0, len(stageNames))
	for i, name := range stageNames {
		stage := models.PipelineStage{PipelineID: pipeline.ID, Name: name, Order: i}
		require.NoError(t, db.Create(&stage).Error)
		stages = append(stages, stage)
	}
	return pipeline, stages
}

func seedDeal(t *testing.T, db *gorm.DB, stageID, contactID uint, assignedTo, partnerID *uint) models.Deal {
	t.Helper()
	deal := models.Deal{
		Title:        "Поставка оборудования",
		Amount:       150000,
		StageID:      stageID,
		ContactID:    contactID,
		AssignedToID: assignedTo,
		PartnerID:    partnerID,
	}
	require.NoError(t, db.Create(&deal).Error)
	return deal
}

var (
	adminActor   = access.Actor{ID: 1, Role: models.RoleAdmin}
	managerActor = access.Actor{ID: 2, Role: models.RoleManager}
	partnerActor = access.Actor{ID: 7, Role: models.RolePartner}
	userActor    = access.Actor{ID: 5, Role: models.RoleUser}
)
