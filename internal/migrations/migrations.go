// Package migrations holds the database schema. Every statement is idempotent and
// they run in order.
package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var Statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		company_id UUID NOT NULL,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS users_company_id_idx ON users (company_id)`,
	`CREATE TABLE IF NOT EXISTS signing_requests (
		id UUID PRIMARY KEY,
		company_id UUID NOT NULL,
		created_by UUID NOT NULL REFERENCES users(id),
		file_name TEXT NOT NULL,
		file_url TEXT NOT NULL,
		file_type TEXT,
		fields JSONB NOT NULL DEFAULT '[]'::jsonb,
		recipient_name TEXT,
		recipient_phone TEXT NOT NULL,
		recipient_email TEXT,
		access_token TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'sent', 'opened', 'signed', 'expired', 'cancelled')),
		expires_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		opened_at TIMESTAMPTZ,
		signed_at TIMESTAMPTZ,
		signed_file_url TEXT,
		signed_field_values JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS signing_requests_company_created_idx
		ON signing_requests (company_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS signing_audit_log (
		id UUID PRIMARY KEY,
		signing_request_id UUID NOT NULL REFERENCES signing_requests(id),
		company_id UUID NOT NULL,
		action TEXT NOT NULL,
		previous_status TEXT,
		new_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS signing_audit_log_request_idx
		ON signing_audit_log (signing_request_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS whatsapp_intake (
		id UUID PRIMARY KEY,
		company_id UUID NOT NULL,
		sender_chat_id TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		provider_message_id TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_url TEXT,
		caption TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS whatsapp_intake_company_idx
		ON whatsapp_intake (company_id, received_at DESC)`,
	`CREATE TABLE IF NOT EXISTS company_invitations (
		token TEXT PRIMARY KEY,
		company_id UUID NOT NULL,
		created_by UUID NOT NULL REFERENCES users(id),
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ,
		used_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func Apply(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	for i, stmt := range Statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration %d: %w", i+1, err)
		}
	}
	logger.Info("Schema is up to date", zap.Int("statements", len(Statements)))
	return nil
}
