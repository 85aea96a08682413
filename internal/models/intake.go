package models

import (
	"time"

	"github.com/google/uuid"
)

// IntakeMessage is a document received over WhatsApp.
type IntakeMessage struct {
	ID                uuid.UUID `db:"id"`
	CompanyID         uuid.UUID `db:"company_id"`
	SenderChatID      string    `db:"sender_chat_id"`
	SenderName        string    `db:"sender_name"`
	ProviderMessageID string    `db:"provider_message_id"`
	FileName          string    `db:"file_name"`
	FileURL           *string   `db:"file_url"`
	Caption           string    `db:"caption"`
	ReceivedAt        time.Time `db:"received_at"`
}
