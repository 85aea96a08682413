package dto

import (
	"time"

	"legaldesk/internal/models"
)

type SigningFieldDTO struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Page     int     `json:"page"`
	Required bool    `json:"required"`
}

// UpdateSigningRequest is a partial update; omitted members stay unchanged.
type UpdateSigningRequest struct {
	Fields         *[]SigningFieldDTO `json:"fields,omitempty"`
	RecipientName  *string            `json:"recipient_name,omitempty"`
	RecipientPhone *string            `json:"recipient_phone,omitempty"`
	RecipientEmail *string            `json:"recipient_email,omitempty"`
	ExpiryDays     *int               `json:"expiry_days,omitempty"`
}

type SendSigningRequest struct {
	AttachDocument bool   `json:"attach_document"`
	Message        string `json:"message,omitempty"`
}

type SigningRequestResponse struct {
	ID                string            `json:"id"`
	FileName          string            `json:"file_name"`
	FileType          string            `json:"file_type,omitempty"`
	Fields            []SigningFieldDTO `json:"fields"`
	RecipientName     string            `json:"recipient_name,omitempty"`
	RecipientPhone    string            `json:"recipient_phone"`
	RecipientEmail    string            `json:"recipient_email,omitempty"`
	Status            string            `json:"status"`
	StatusLabel       string            `json:"status_label"`
	StatusVariant     string            `json:"status_variant"`
	SigningLink       string            `json:"signing_link,omitempty"`
	ExpiresAt         time.Time         `json:"expires_at"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	OpenedAt          *time.Time        `json:"opened_at,omitempty"`
	SignedAt          *time.Time        `json:"signed_at,omitempty"`
	HasSignedFile     bool              `json:"has_signed_file"`
	SignedFieldValues map[string]string `json:"signed_field_values,omitempty"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type SendSigningResponse struct {
	Request   SigningRequestResponse `json:"request"`
	MessageID string                 `json:"message_id"`
	ChatID    string                 `json:"chat_id"`
}

type DownloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

type AuditEntryResponse struct {
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	Actor          string    `json:"actor"`
	Details        string    `json:"details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecipientView is what the token holder sees on the signing page.
type RecipientView struct {
	FileName      string            `json:"file_name"`
	FileType      string            `json:"file_type,omitempty"`
	DocumentURL   string            `json:"document_url"`
	RecipientName string            `json:"recipient_name,omitempty"`
	Fields        []SigningFieldDTO `json:"fields"`
	Status        string            `json:"status"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

type CompleteSigningResponse struct {
	Status   string    `json:"status"`
	SignedAt time.Time `json:"signed_at"`
}

func FieldFromModel(f models.SigningField) SigningFieldDTO {
	return SigningFieldDTO{
		ID:       f.ID,
		Type:     string(f.Type),
		Label:    f.Label,
		X:        f.X,
		Y:        f.Y,
		Width:    f.Width,
		Height:   f.Height,
		Page:     f.Page,
		Required: f.Required,
	}
}

func (f SigningFieldDTO) ToModel() models.SigningField {
	return models.SigningField{
		ID:       f.ID,
		Type:     models.FieldType(f.Type),
		Label:    f.Label,
		X:        f.X,
		Y:        f.Y,
		Width:    f.Width,
		Height:   f.Height,
		Page:     f.Page,
		Required: f.Required,
	}
}

func FieldsFromModel(fields []models.SigningField) []SigningFieldDTO {
	out := make([]SigningFieldDTO, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldFromModel(f))
	}
	return out
}

func FieldsToModel(fields []SigningFieldDTO) []models.SigningField {
	out := make([]models.SigningField, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.ToModel())
	}
	return out
}

// SigningRequestFromModel renders a request as of now; Status is the effective status.
func SigningRequestFromModel(r *models.SigningRequest, now time.Time, link string) SigningRequestResponse {
	status := r.EffectiveStatus(now)
	return SigningRequestResponse{
		ID:                r.ID.String(),
		FileName:          r.FileName,
		FileType:          deref(r.FileType),
		Fields:            FieldsFromModel(r.Fields),
		RecipientName:     deref(r.RecipientName),
		RecipientPhone:    r.RecipientPhone,
		RecipientEmail:    deref(r.RecipientEmail),
		Status:            string(status),
		StatusLabel:       status.Label(),
		StatusVariant:     status.Variant(),
		SigningLink:       link,
		ExpiresAt:         r.ExpiresAt,
		SentAt:            r.SentAt,
		OpenedAt:          r.OpenedAt,
		SignedAt:          r.SignedAt,
		HasSignedFile:     r.SignedFileURL != nil && *r.SignedFileURL != "",
		SignedFieldValues: r.SignedFieldValues,
		CreatedBy:         r.CreatedBy.String(),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func AuditEntryFromModel(e *models.SigningAuditEntry) AuditEntryResponse {
	resp := AuditEntryResponse{
		Action:    string(e.Action),
		NewStatus: string(e.NewStatus),
		Actor:     e.Actor,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
	if e.PreviousStatus != nil {
		resp.PreviousStatus = string(*e.PreviousStatus)
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
