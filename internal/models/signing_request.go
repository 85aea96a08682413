package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusOpened    Status = "opened"
	StatusSigned    Status = "signed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSent, StatusOpened, StatusSigned, StatusExpired, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusSigned, StatusExpired, StatusCancelled:
		return true
	case StatusDraft, StatusSent, StatusOpened:
		return false
	}
	return true
}

// Label is the human readable name shown on dashboards.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSent:
		return "Sent"
	case StatusOpened:
		return "Opened"
	case StatusSigned:
		return "Signed"
	case StatusExpired:
		return "Expired"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Variant is the badge style for the status.
func (s Status) Variant() string {
	switch s {
	case StatusDraft:
		return "secondary"
	case StatusSent:
		return "info"
	case StatusOpened:
		return "warning"
	case StatusSigned:
		return "success"
	case StatusExpired, StatusCancelled:
		return "destructive"
	}
	return "secondary"
}

// CanTransition reports whether a stored status may move to the target status.
// Staying in sent or opened is allowed so that resending is idempotent. A request
// is signed only after it has been opened.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusSent
	case StatusSent:
		return to == StatusSent || to == StatusOpened || to == StatusCancelled
	case StatusOpened:
		return to == StatusOpened || to == StatusSigned || to == StatusCancelled
	case StatusSigned, StatusExpired, StatusCancelled:
		return false
	}
	return false
}

// SourceStatuses returns the stored statuses from which target is reachable.
func SourceStatuses(target Status) []Status {
	var from []Status
	for _, s := range Statuses {
		if CanTransition(s, target) {
			from = append(from, s)
		}
	}
	return from
}

type FieldType string

const (
	FieldFirstName FieldType = "first_name"
	FieldLastName  FieldType = "last_name"
	FieldPhone     FieldType = "phone"
	FieldEmail     FieldType = "email"
	FieldSignature FieldType = "signature"
	FieldDate      FieldType = "date"
	FieldText      FieldType = "text"
	FieldIDNumber  FieldType = "id_number"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldFirstName, FieldLastName, FieldPhone, FieldEmail, FieldSignature, FieldDate, FieldText, FieldIDNumber:
		return true
	}
	return false
}

// SigningField is a capture zone placed on a document page. Coordinates are
// fractions of the page size.
type SigningField struct {
	ID       string    `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Page     int       `json:"page"`
	Required bool      `json:"required"`
}

type SigningRequest struct {
	ID                uuid.UUID         `db:"id"`
	CompanyID         uuid.UUID         `db:"company_id"`
	CreatedBy         uuid.UUID         `db:"created_by"`
	FileName          string            `db:"file_name"`
	FileURL           string            `db:"file_url"`
	FileType          *string           `db:"file_type"`
	Fields            []SigningField    `db:"fields"`
	RecipientName     *string           `db:"recipient_name"`
	RecipientPhone    string            `db:"recipient_phone"`
	RecipientEmail    *string           `db:"recipient_email"`
	AccessToken       string            `db:"access_token"`
	Status            Status            `db:"status"`
	ExpiresAt         time.Time         `db:"expires_at"`
	SentAt            *time.Time        `db:"sent_at"`
	OpenedAt          *time.Time        `db:"opened_at"`
	SignedAt          *time.Time        `db:"signed_at"`
	SignedFileURL     *string           `db:"signed_file_url"`
	SignedFieldValues map[string]string `db:"signed_field_values"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

// EffectiveStatus is the status every reader must use: a request that is not yet
// terminal counts as expired once now is past ExpiresAt, whatever is stored.
func (r *SigningRequest) EffectiveStatus(now time.Time) Status {
	if !r.Status.Terminal() && now.After(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}
