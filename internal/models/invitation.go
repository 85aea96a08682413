package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation lets one new user join an existing company.
type Invitation struct {
	Token     string     `db:"token"`
	CompanyID uuid.UUID  `db:"company_id"`
	CreatedBy uuid.UUID  `db:"created_by"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	UsedBy    *uuid.UUID `db:"used_by"`
	CreatedAt time.Time  `db:"created_at"`
}
