package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/models"
)

func newImportService(t *testing.T, db *gorm.DB) *ImportService {
	t.Helper()
	return NewImportService(db, testLogger())
}

func TestParseCSV(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	csvData := "firstname,lastname,phone,email\n" +
		"Анна,Иванова,+79993330001,anna@example.com\n" +
		"Пётр,Сидоров,+79993330002,\n"

	rows, err := svc.ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Анна", rows[0]["firstname"])
	assert.Equal(t, "+79993330002", rows[1]["phone"])
}

func TestParseCSV_HeadersLowercased(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	rows, err := svc.ParseCSV(strings.NewReader("FirstName,LastName,Phone\nАнна,Иванова,+79993330003\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Анна", rows[0]["firstname"])
}

func TestMapRows_RussianHeaders(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	dtos, err := svc.MapRows([]map[string]string{
		{"имя": "Анна", "фамилия": "Иванова", "телефон": "+79993330004", "почта": "anna@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, dtos, 1)

	assert.Equal(t, "Анна", dtos[0].FirstName)
	assert.Equal(t, "Иванова", dtos[0].LastName)
	assert.Equal(t, "+79993330004", dtos[0].Phone)
	require.NotNil(t, dtos[0].Email)
	assert.Equal(t, "anna@example.com", *dtos[0].Email)

	// загруженные извне контакты получают фиксированный источник и статус
	assert.Equal(t, models.SourceExternalUpload, dtos[0].Source)
	assert.Equal(t, models.StatusNewNoProcessing, dtos[0].StatusClient)
}

func TestMapRows_MissingRequiredColumns(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	_, err := svc.MapRows([]map[string]string{
		{"firstname": "Анна", "lastname": "Иванова"},
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestImport_CreatesContacts(t *testing.T) {
	db := openTestDB(t)
	svc := newImportService(t, db)
	ctx := context.Background()

	dtos, err := svc.MapRows([]map[string]string{
		{"firstname": "Анна", "lastname": "Иванова", "phone": "+79993330005"},
		{"firstname": "Пётр", "lastname": "Сидоров", "phone": "+79993330006"},
	})
	require.NoError(t, err)

	result, err := svc.Import(ctx, dtos, userActor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)

	var contacts []models.Contact
	require.NoError(t, db.Find(&contacts).Error)
	require.Len(t, contacts, 2)
	for _, contact := range contacts {
		assert.Equal(t, userActor.ID, *contact.AssignedToID)
		assert.True(t, contact.IsLead)
	}
}

func TestImport_SkipsDuplicates(t *testing.T) {
	db := openTestDB(t)
	svc := newImportService(t, db)
	ctx := context.Background()

	seedContact(t, db, "+79993330007", uintPtr(userActor.ID), nil)

	dtos, err := svc.MapRows([]map[string]string{
		{"firstname": "Анна", "lastname": "Иванова", "phone": "+79993330007"},
		{"firstname": "Пётр", "lastname": "Сидоров", "phone": "+79993330008"},
	})
	require.NoError(t, err)

	result, err := svc.Import(ctx, dtos, userActor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "+79993330007")
}

func TestImport_PartnerStampsPartnerID(t *testing.T) {
	db := openTestDB(t)
	svc := newImportService(t, db)
	ctx := context.Background()

	dtos, err := svc.MapRows([]map[string]string{
		{"firstname": "Анна", "lastname": "Иванова", "phone": "+79993330009"},
	})
	require.NoError(t, err)

	_, err = svc.Import(ctx, dtos, partnerActor)
	require.NoError(t, err)

	var contact models.Contact
	require.NoError(t, db.Where("phone = ?", "+79993330009").First(&contact).Error)
	require.NotNil(t, contact.PartnerID)
	assert.Equal(t, partnerActor.ID, *contact.PartnerID)
}

func TestParseExcel(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"firstname", "lastname", "phone"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"Анна", "Иванова", "+79993330010"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := svc.ParseExcel(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Анна", rows[0]["firstname"])
	assert.Equal(t, "+79993330010", rows[0]["phone"])
}

func TestParseExcel_EmptySheet(t *testing.T) {
	svc := newImportService(t, openTestDB(t))

	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = svc.ParseExcel(buf.Bytes())
	assert.True(t, apperrors.IsValidation(err))
}
