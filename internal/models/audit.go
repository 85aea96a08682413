package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreated   AuditAction = "created"
	AuditUpdated   AuditAction = "updated"
	AuditSent      AuditAction = "sent"
	AuditResent    AuditAction = "resent"
	AuditOpened    AuditAction = "opened"
	AuditSigned    AuditAction = "signed"
	AuditCancelled AuditAction = "cancelled"
)

// ActorRecipient marks audit rows written on behalf of the token holder rather than a user.
const ActorRecipient = "recipient"

type SigningAuditEntry struct {
	ID               uuid.UUID   `db:"id"`
	SigningRequestID uuid.UUID   `db:"signing_request_id"`
	CompanyID        uuid.UUID   `db:"company_id"`
	Action           AuditAction `db:"action"`
	PreviousStatus   *Status     `db:"previous_status"`
	NewStatus        Status      `db:"new_status"`
	Actor            string      `db:"actor"`
	Details          string      `db:"details"`
	CreatedAt        time.Time   `db:"created_at"`
}
