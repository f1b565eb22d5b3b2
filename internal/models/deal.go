package models

import (
	"time"

	"gorm.io/gorm"
)

type Deal struct {
	gorm.Model
	Title       string  `json:"title" gorm:"size:255;not null"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description" gorm:"type:text"`

	StageID uint           `json:"stageId" gorm:"index;not null"`
	Stage   *PipelineStage `json:"stage,omitempty"`

	ContactID uint     `json:"contactId" gorm:"index;not null"`
	Contact   *Contact `json:"contact,omitempty"`

	AssignedToID *uint    `json:"assignedToId" gorm:"index"`
	AssignedTo   *User    `json:"assignedTo,omitempty"`
	PartnerID    *uint    `json:"partnerId" gorm:"index"`
	Partner      *Partner `json:"partner,omitempty"`
}

func (d *Deal) AuditFields() map[string]any {
	return map[string]any{
		"title":        d.Title,
		"amount":       d.Amount,
		"description":  d.Description,
		"stageId":      d.StageID,
		"contactId":    d.ContactID,
		"assignedToId": d.AssignedToID,
		"partnerId":    d.PartnerID,
	}
}

// DealPatch is the explicit field allowlist for deal updates.
type DealPatch struct {
	Title        *string  `json:"title"`
	Amount       *float64 `json:"amount"`
	Description  *string  `json:"description"`
	StageID      *uint    `json:"stageId"`
	ContactID    *uint    `json:"contactId"`
	AssignedToID *uint    `json:"assignedToId"`
	PartnerID    *uint    `json:"partnerId"`
}

func (p DealPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Amount != nil {
		out["amount"] = *p.Amount
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.StageID != nil {
		out["stageId"] = *p.StageID
	}
	if p.ContactID != nil {
		out["contactId"] = *p.ContactID
	}
	if p.AssignedToID != nil {
		out["assignedToId"] = *p.AssignedToID
	}
	if p.PartnerID != nil {
		out["partnerId"] = *p.PartnerID
	}
	return out
}

func (p DealPatch) Apply(d *Deal) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.StageID != nil {
		d.StageID = *p.StageID
	}
	if p.ContactID != nil {
		d.ContactID = *p.ContactID
	}
	if p.AssignedToID != nil {
		d.AssignedToID = p.AssignedToID
	}
	if p.PartnerID != nil {
		d.PartnerID = p.PartnerID
	}
}

// DealHistory — журнал изменений сделки, только добавление.
type DealHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DealID    uint      `json:"dealId" gorm:"index;not null"`
	Field     string    `json:"field" gorm:"size:50;not null"`
	OldValue  string    `json:"oldValue" gorm:"type:text"`
	NewValue  string    `json:"newValue" gorm:"type:text"`
	ChangedBy uint      `json:"changedBy" gorm:"not null"`
	ChangedAt time.Time `json:"changedAt" gorm:"autoCreateTime"`
}

type DealComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DealID    uint      `json:"dealId" gorm:"index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedBy uint      `json:"createdBy" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type DealAttachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	DealID       uint      `json:"dealId" gorm:"index;not null"`
	Filename     string    `json:"filename" gorm:"size:255;not null"`
	OriginalName string    `json:"originalName" gorm:"size:255"`
	MimeType     string    `json:"mimeType" gorm:"size:100"`
	Size         int64     `json:"size"`
	Path         string    `json:"path" gorm:"size:512"`
	UploadedBy   uint      `json:"uploadedBy" gorm:"not null"`
	UploadedAt   time.Time `json:"uploadedAt" gorm:"autoCreateTime"`
}
