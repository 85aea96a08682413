package repository

import (
	"context"
	"errors"

	"legaldesk/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var intakeColumns = []string{
	"id", "company_id", "sender_chat_id", "sender_name", "provider_message_id", "file_name", "file_url", "caption", "received_at",
}

type IntakeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewIntakeRepository(db *pgxpool.Pool, logger *zap.Logger) *IntakeRepository {
	return &IntakeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the message. It reports false when a row with the same
// provider message id already exists.
func (r *IntakeRepository) Create(ctx context.Context, msg *models.IntakeMessage) (bool, error) {
	query := squirrel.Insert("whatsapp_intake").
		Columns(intakeColumns...).
		Values(msg.ID, msg.CompanyID, msg.SenderChatID, msg.SenderName, msg.ProviderMessageID, msg.FileName, msg.FileURL, msg.Caption, msg.ReceivedAt).
		Suffix("ON CONFLICT (provider_message_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *IntakeRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.IntakeMessage, error) {
	query := squirrel.Select(intakeColumns...).
		From("whatsapp_intake").
		Where(squirrel.Eq{"provider_message_id": providerMessageID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var m models.IntakeMessage
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&m.ID, &m.CompanyID, &m.SenderChatID, &m.SenderName, &m.ProviderMessageID, &m.FileName, &m.FileURL, &m.Caption, &m.ReceivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *IntakeRepository) ListByCompanyID(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.IntakeMessage, error) {
	query := squirrel.Select(intakeColumns...).
		From("whatsapp_intake").
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("received_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
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

	var messages []*models.IntakeMessage
	for rows.Next() {
		var m models.IntakeMessage
		if err := rows.Scan(
			&m.ID, &m.CompanyID, &m.SenderChatID, &m.SenderName, &m.ProviderMessageID, &m.FileName, &m.FileURL, &m.Caption, &m.ReceivedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}
