package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"mak3-crm/internal/access"
	"mak3-crm/internal/apperrors"
	"mak3-crm/internal/models"
)

// ImportService bulk-loads contacts from CSV or Excel uploads.
type ImportService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewImportService(db *gorm.DB, log *slog.Logger) *ImportService {
	return &ImportService{db: db, log: log}
}

type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// ParseCSV reads a headered CSV into row maps with lowercased header keys.
func (s *ImportService) ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.Validation("failed to read CSV header: " + err.Error())
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Validation("failed to parse CSV: " + err.Error())
		}
		row := map[string]string{}
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(value)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ParseExcel reads the first sheet of an xlsx file into row maps, first row
// treated as the header.
func (s *ImportService) ParseExcel(data []byte) ([]map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Validation("failed to open Excel file: " + err.Error())
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperrors.Validation("Excel file contains no sheets")
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.Validation("failed to read Excel sheet: " + err.Error())
	}
	if len(raw) < 2 {
		return nil, apperrors.Validation("Excel file contains no data rows")
	}

	header := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []map[string]string
	for _, record := range raw[1:] {
		row := map[string]string{}
		for i, value := range record {
			if i < len(header) && header[i] != "" {
				row[header[i]] = strings.TrimSpace(value)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// заголовки принимаем и на английском, и на русском — как в выгрузках партнёров
func pick(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// MapRows converts raw rows to create inputs, stamping upload defaults.
func (s *ImportService) MapRows(rows []map[string]string) ([]CreateContactInput, error) {
	dtos := make([]CreateContactInput, 0, len(rows))
	for _, row := range rows {
		in := CreateContactInput{
			FirstName:    pick(row, "firstname", "first name", "имя"),
			LastName:     pick(row, "lastname", "last name", "фамилия"),
			MiddleName:   pick(row, "middlename", "middle name", "отчество"),
			Phone:        pick(row, "phone", "телефон"),
			Notes:        pick(row, "notes", "note", "примечания", "комментарий"),
			Source:       models.SourceExternalUpload,
			StatusClient: models.StatusNewNoProcessing,
		}
		if email := pick(row, "email", "почта"); email != "" {
			in.Email = &email
		}
		if in.FirstName == "" || in.LastName == "" || in.Phone == "" {
			return nil, apperrors.Validation(fmt.Sprintf(
				"row is missing required fields (firstname, lastname, phone): %v", row))
		}
		dtos = append(dtos, in)
	}
	return dtos, nil
}

// Import creates the contacts in a single transaction. Duplicate phone/email
// rows are skipped and reported; any other failure rolls everything back.
func (s *ImportService) Import(ctx context.Context, dtos []CreateContactInput, actor access.Actor) (*ImportResult, error) {
	result := &ImportResult{Total: len(dtos), Errors: []string{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range dtos {
			var count int64
			q := tx.Model(&models.Contact{}).Where("phone = ?", in.Phone)
			if in.Email != nil && *in.Email != "" {
				q = tx.Model(&models.Contact{}).Where("phone = ? OR email = ?", in.Phone, *in.Email)
			}
			if err := q.Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				result.Errors = append(result.Errors, fmt.Sprintf(
					"contact with phone %s or the same email already exists", in.Phone))
				continue
			}

			assignedTo := actor.ID
			contact := models.Contact{
				FirstName:    in.FirstName,
				LastName:     in.LastName,
				MiddleName:   in.MiddleName,
				Phone:        in.Phone,
				Email:        in.Email,
				Source:       in.Source,
				StatusClient: in.StatusClient,
				IsLead:       true,
				Notes:        in.Notes,
				AssignedToID: &assignedTo,
			}
			if actor.Role == models.RolePartner {
				id := actor.ID
				contact.PartnerID = &id
			}

			if err := tx.Create(&contact).Error; err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.log.Info("contact import finished",
		"total", result.Total, "created", result.Created, "skipped", len(result.Errors))
	return result, nil
}
