package models

import (
	"time"

	"gorm.io/gorm"
)

type ContactSource string

const (
	SourcePartnerLeadWithHistory ContactSource = "PARTNER_LEAD_WITH_HISTORY"
	SourcePartnerLeadNoHistory   ContactSource = "PARTNER_LEAD_NO_HISTORY"
	SourceOwnLeadGen             ContactSource = "OWN_LEAD_GEN"
	SourceColdBase               ContactSource = "COLD_BASE"
	SourceExternalUpload         ContactSource = "EXTERNAL_UPLOAD"
	SourcePurchasedBase          ContactSource = "PURCHASED_BASE"
)

type ClientStatus string

const (
	StatusNewNoProcessing             ClientStatus = "NEW_NO_PROCESSING"
	StatusPartnerLead                 ClientStatus = "PARTNER_LEAD"
	StatusAuction                     ClientStatus = "AUCTION"
	StatusNotBoughtCompanyProcessing  ClientStatus = "NOT_BOUGHT_COMPANY_PROCESSING"
	StatusInProgress                  ClientStatus = "IN_PROGRESS"
	StatusSuccessful                  ClientStatus = "SUCCESSFUL"
	StatusDeclined                    ClientStatus = "DECLINED"
	StatusOnHold                      ClientStatus = "ON_HOLD"
)

type Contact struct {
	gorm.Model
	FirstName  string `json:"firstName" gorm:"size:100;not null"`
	LastName   string `json:"lastName" gorm:"size:100;not null"`
	MiddleName string `json:"middleName" gorm:"size:100"`

	Phone string  `json:"phone" gorm:"size:50;uniqueIndex;not null"`
	Email *string `json:"email" gorm:"size:255;uniqueIndex"`

	Source       ContactSource `json:"source" gorm:"type:varchar(50);not null"`
	StatusClient ClientStatus  `json:"statusClient" gorm:"type:varchar(50);not null"`
	// без тега default: gorm выкидывает нулевые значения из INSERT,
	// и явный false превращался бы в true
	IsLead bool `json:"isLead"`

	Notes string `json:"notes" gorm:"type:text"`

	// владение: ответственный пользователь и (опционально) партнёр
	AssignedToID *uint    `json:"assignedToId" gorm:"index"`
	AssignedTo   *User    `json:"assignedTo,omitempty"`
	PartnerID    *uint    `json:"partnerId" gorm:"index"`
	Partner      *Partner `json:"partner,omitempty"`
}

// AuditFields returns the diffable view of a contact, keyed the way patch
// fields are keyed, so history records line up with API field names.
func (c *Contact) AuditFields() map[string]any {
	return map[string]any{
		"firstName":    c.FirstName,
		"lastName":     c.LastName,
		"middleName":   c.MiddleName,
		"phone":        c.Phone,
		"email":        c.Email,
		"source":       c.Source,
		"statusClient": c.StatusClient,
		"isLead":       c.IsLead,
		"notes":        c.Notes,
		"assignedToId": c.AssignedToID,
		"partnerId":    c.PartnerID,
	}
}

// ContactPatch is the explicit field allowlist for contact updates. Only
// non-nil fields are applied and diffed; anything else cannot be mutated
// through the update path. A nil pointer means "untouched": nullable
// columns (email, assignedToId, partnerId) can be reassigned but never
// cleared back to NULL here.
type ContactPatch struct {
	FirstName    *string        `json:"firstName"`
	LastName     *string        `json:"lastName"`
	MiddleName   *string        `json:"middleName"`
	Phone        *string        `json:"phone"`
	Email        *string        `json:"email"`
	Source       *ContactSource `json:"source"`
	StatusClient *ClientStatus  `json:"statusClient"`
	IsLead       *bool          `json:"isLead"`
	Notes        *string        `json:"notes"`
	AssignedToID *uint          `json:"assignedToId"`
	PartnerID    *uint          `json:"partnerId"`
}

// Fields returns only the keys present in the patch.
func (p ContactPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.FirstName != nil {
		out["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		out["lastName"] = *p.LastName
	}
	if p.MiddleName != nil {
		out["middleName"] = *p.MiddleName
	}
	if p.Phone != nil {
		out["phone"] = *p.Phone
	}
	if p.Email != nil {
		out["email"] = *p.Email
	}
	if p.Source != nil {
		out["source"] = *p.Source
	}
	if p.StatusClient != nil {
		out["statusClient"] = *p.StatusClient
	}
	if p.IsLead != nil {
		out["isLead"] = *p.IsLead
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if p.AssignedToID != nil {
		out["assignedToId"] = *p.AssignedToID
	}
	if p.PartnerID != nil {
		out["partnerId"] = *p.PartnerID
	}
	return out
}

// Apply copies the set fields of the patch onto the contact.
func (p ContactPatch) Apply(c *Contact) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.MiddleName != nil {
		c.MiddleName = *p.MiddleName
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Email != nil {
		c.Email = p.Email
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
	if p.StatusClient != nil {
		c.StatusClient = *p.StatusClient
	}
	if p.IsLead != nil {
		c.IsLead = *p.IsLead
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if p.AssignedToID != nil {
		c.AssignedToID = p.AssignedToID
	}
	if p.PartnerID != nil {
		c.PartnerID = p.PartnerID
	}
}

// ContactHistory — журнал изменений контакта, только добавление.
type ContactHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ContactID uint      `json:"contactId" gorm:"index;not null"`
	Field     string    `json:"field" gorm:"size:50;not null"`
	OldValue  string    `json:"oldValue" gorm:"type:text"`
	NewValue  string    `json:"newValue" gorm:"type:text"`
	ChangedBy uint      `json:"changedBy" gorm:"not null"`
	ChangedAt time.Time `json:"changedAt" gorm:"autoCreateTime"`
}

type ContactComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ContactID uint      `json:"contactId" gorm:"index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedBy uint      `json:"createdBy" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContactAttachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ContactID    uint      `json:"contactId" gorm:"index;not null"`
	Filename     string    `json:"filename" gorm:"size:255;not null"` // ключ в хранилище
	OriginalName string    `json:"originalName" gorm:"size:255"`
	MimeType     string    `json:"mimeType" gorm:"size:100"`
	Size         int64     `json:"size"`
	Path         string    `json:"path" gorm:"size:512"`
	UploadedBy   uint      `json:"uploadedBy" gorm:"not null"`
	UploadedAt   time.Time `json:"uploadedAt" gorm:"autoCreateTime"`
}
