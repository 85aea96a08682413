package repository

import (
	"context"
	"errors"
	"time"

	"legaldesk/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const invitationsTable = "company_invitations"

type InvitationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInvitationRepository(db *pgxpool.Pool, logger *zap.Logger) *InvitationRepository {
	return &InvitationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := squirrel.Insert(invitationsTable).
		Columns("token", "company_id", "created_by", "expires_at", "created_at").
		Values(inv.Token, inv.CompanyID, inv.CreatedBy, inv.ExpiresAt, inv.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Consume marks an unused, unexpired invitation as used by userID and returns its
// company. Any other token yields ErrNotFound.
func (r *InvitationRepository) Consume(ctx context.Context, token string, userID uuid.UUID, now time.Time) (uuid.UUID, error) {
	query := squirrel.Update(invitationsTable).
		Set("used_at", now).
		Set("used_by", userID).
		Where(squirrel.Eq{"token": token, "used_at": nil}).
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING company_id").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return uuid.Nil, err
	}

	var companyID uuid.UUID
	err = r.db.QueryRow(ctx, sql, args...).Scan(&companyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return companyID, nil
}
