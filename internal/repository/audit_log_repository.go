package repository

import (
	"context"

	"legaldesk/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const auditLogTable = "signing_audit_log"

type AuditLogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAuditLogRepository(db *pgxpool.Pool, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *models.SigningAuditEntry) error {
	query := squirrel.Insert(auditLogTable).
		Columns("id", "signing_request_id", "company_id", "action", "previous_status", "new_status", "actor", "details", "created_at").
		Values(entry.ID, entry.SigningRequestID, entry.CompanyID, entry.Action, entry.PreviousStatus, entry.NewStatus, entry.Actor, entry.Details, entry.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *AuditLogRepository) ListByRequestID(ctx context.Context, companyID, requestID uuid.UUID) ([]*models.SigningAuditEntry, error) {
	query := squirrel.Select("id", "signing_request_id", "company_id", "action", "previous_status", "new_status", "actor", "details", "created_at").
		From(auditLogTable).
		Where(squirrel.Eq{"signing_request_id": requestID, "company_id": companyID}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SigningAuditEntry
	for rows.Next() {
		var e models.SigningAuditEntry
		if err := rows.Scan(
			&e.ID, &e.SigningRequestID, &e.CompanyID, &e.Action, &e.PreviousStatus, &e.NewStatus, &e.Actor, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (r *AuditLogRepository) DeleteByRequestID(ctx context.Context, requestID uuid.UUID) error {
	query := squirrel.Delete(auditLogTable).
		Where(squirrel.Eq{"signing_request_id": requestID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
