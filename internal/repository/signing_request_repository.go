package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"legaldesk/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("record not found")

const signingRequestsTable = "signing_requests"

var signingRequestColumns = []string{
	"id", "company_id", "created_by", "file_name", "file_url", "file_type", "fields",
	"recipient_name", "recipient_phone", "recipient_email", "access_token", "status", "expires_at",
	"sent_at", "opened_at", "signed_at", "signed_file_url", "signed_field_values", "created_at", "updated_at",
}

// SigningRequestUpdate carries the editable columns; nil members are left untouched.
type SigningRequestUpdate struct {
	Fields         *[]models.SigningField
	RecipientName  *string
	RecipientPhone *string
	RecipientEmail *string
	ExpiresAt      *time.Time
}

func (u SigningRequestUpdate) Empty() bool {
	return u.Fields == nil && u.RecipientName == nil && u.RecipientPhone == nil &&
		u.RecipientEmail == nil && u.ExpiresAt == nil
}

// Transition describes a guarded status write. CompanyID may be uuid.Nil for
// token-authenticated callers, which are scoped by ID alone.
type Transition struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	From      []models.Status
	To        models.Status
	Now       time.Time
	// RequireUnexpired adds expires_at > Now to the guard.
	RequireUnexpired bool
}

// Completion is the single write that moves a request into signed.
type Completion struct {
	ID            uuid.UUID
	From          []models.Status
	SignedAt      time.Time
	SignedFileURL string
	Values        map[string]string
}

type ListFilter struct {
	Status *models.Status
	Now    time.Time
	Limit  int
	Offset int
}

type SigningRequestRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSigningRequestRepository(db *pgxpool.Pool, logger *zap.Logger) *SigningRequestRepository {
	return &SigningRequestRepository{
		db:     db,
		logger: logger,
	}
}

func (r *SigningRequestRepository) Create(ctx context.Context, req *models.SigningRequest) error {
	fields, err := json.Marshal(nonNilFields(req.Fields))
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	query := squirrel.Insert(signingRequestsTable).
		Columns("id", "company_id", "created_by", "file_name", "file_url", "file_type", "fields",
			"recipient_name", "recipient_phone", "recipient_email", "access_token", "status", "expires_at",
			"created_at", "updated_at").
		Values(req.ID, req.CompanyID, req.CreatedBy, req.FileName, req.FileURL, req.FileType, string(fields),
			req.RecipientName, req.RecipientPhone, req.RecipientEmail, req.AccessToken, req.Status, req.ExpiresAt,
			req.CreatedAt, req.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *SigningRequestRepository) GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.SigningRequest, error) {
	query := squirrel.Select(signingRequestColumns...).
		From(signingRequestsTable).
		Where(squirrel.Eq{"id": id, "company_id": companyID}).
		PlaceholderFormat(squirrel.Dollar)

	return r.getOne(ctx, query)
}

func (r *SigningRequestRepository) GetByAccessToken(ctx context.Context, token string) (*models.SigningRequest, error) {
	query := squirrel.Select(signingRequestColumns...).
		From(signingRequestsTable).
		Where(squirrel.Eq{"access_token": token}).
		PlaceholderFormat(squirrel.Dollar)

	return r.getOne(ctx, query)
}

func (r *SigningRequestRepository) getOne(ctx context.Context, query squirrel.SelectBuilder) (*models.SigningRequest, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	req, err := scanSigningRequest(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// List returns the company's requests, newest first. A status filter matches the
// effective status, so "expired" also returns stale sent/opened rows.
func (r *SigningRequestRepository) List(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]*models.SigningRequest, error) {
	query := squirrel.Select(signingRequestColumns...).
		From(signingRequestsTable).
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.Status != nil {
		query = query.Where(effectiveStatusCondition(*filter.Status, filter.Now))
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.SigningRequest
	for rows.Next() {
		req, err := scanSigningRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func effectiveStatusCondition(status models.Status, now time.Time) squirrel.Sqlizer {
	if status == models.StatusExpired {
		return squirrel.Or{
			squirrel.Eq{"status": models.StatusExpired},
			squirrel.And{
				squirrel.Eq{"status": []models.Status{models.StatusDraft, models.StatusSent, models.StatusOpened}},
				squirrel.Lt{"expires_at": now},
			},
		}
	}
	if status.Terminal() {
		return squirrel.Eq{"status": status}
	}
	return squirrel.And{
		squirrel.Eq{"status": status},
		squirrel.GtOrEq{"expires_at": now},
	}
}

// Update writes the supplied columns while the stored status is one of allowed.
// It returns false when no row matched.
func (r *SigningRequestRepository) Update(ctx context.Context, companyID, id uuid.UUID, upd SigningRequestUpdate, allowed []models.Status) (bool, error) {
	query := squirrel.Update(signingRequestsTable).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "company_id": companyID, "status": allowed}).
		PlaceholderFormat(squirrel.Dollar)

	if upd.Fields != nil {
		fields, err := json.Marshal(nonNilFields(*upd.Fields))
		if err != nil {
			return false, fmt.Errorf("failed to encode fields: %w", err)
		}
		query = query.Set("fields", string(fields))
	}
	if upd.RecipientName != nil {
		query = query.Set("recipient_name", nullIfEmpty(*upd.RecipientName))
	}
	if upd.RecipientPhone != nil {
		query = query.Set("recipient_phone", *upd.RecipientPhone)
	}
	if upd.RecipientEmail != nil {
		query = query.Set("recipient_email", nullIfEmpty(*upd.RecipientEmail))
	}
	if upd.ExpiresAt != nil {
		query = query.Set("expires_at", *upd.ExpiresAt)
	}

	return r.execAffected(ctx, query)
}

// Transition performs a conditional status write and stamps the matching
// timestamp column. It returns false when the guard did not match.
func (r *SigningRequestRepository) Transition(ctx context.Context, t Transition) (bool, error) {
	where := squirrel.Eq{"id": t.ID, "status": t.From}
	if t.CompanyID != uuid.Nil {
		where["company_id"] = t.CompanyID
	}

	query := squirrel.Update(signingRequestsTable).
		Set("status", t.To).
		Set("updated_at", t.Now).
		Where(where).
		PlaceholderFormat(squirrel.Dollar)

	if t.RequireUnexpired {
		query = query.Where(squirrel.Gt{"expires_at": t.Now})
	}
	switch t.To {
	case models.StatusSent:
		query = query.Set("sent_at", squirrel.Expr("COALESCE(sent_at, ?)", t.Now))
	case models.StatusOpened:
		query = query.Set("opened_at", squirrel.Expr("COALESCE(opened_at, ?)", t.Now))
	}

	return r.execAffected(ctx, query)
}

// Complete writes status, signed_at, signed_file_url and signed_field_values in one
// statement, guarded on the current status and on the request not having expired.
func (r *SigningRequestRepository) Complete(ctx context.Context, c Completion) (bool, error) {
	values, err := json.Marshal(c.Values)
	if err != nil {
		return false, fmt.Errorf("failed to encode signed values: %w", err)
	}

	query := squirrel.Update(signingRequestsTable).
		Set("status", models.StatusSigned).
		Set("signed_at", c.SignedAt).
		Set("signed_file_url", c.SignedFileURL).
		Set("signed_field_values", string(values)).
		Set("updated_at", c.SignedAt).
		Where(squirrel.Eq{"id": c.ID, "status": c.From}).
		Where(squirrel.Gt{"expires_at": c.SignedAt}).
		Where(squirrel.Eq{"signed_at": nil}).
		PlaceholderFormat(squirrel.Dollar)

	return r.execAffected(ctx, query)
}

func (r *SigningRequestRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	query := squirrel.Delete(signingRequestsTable).
		Where(squirrel.Eq{"id": id, "company_id": companyID}).
		PlaceholderFormat(squirrel.Dollar)

	ok, err := r.execAffected(ctx, query)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *SigningRequestRepository) execAffected(ctx context.Context, query squirrel.Sqlizer) (bool, error) {
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

func scanSigningRequest(row pgx.Row) (*models.SigningRequest, error) {
	var (
		req          models.SigningRequest
		fields       []byte
		signedValues []byte
	)
	err := row.Scan(
		&req.ID, &req.CompanyID, &req.CreatedBy, &req.FileName, &req.FileURL, &req.FileType, &fields,
		&req.RecipientName, &req.RecipientPhone, &req.RecipientEmail, &req.AccessToken, &req.Status, &req.ExpiresAt,
		&req.SentAt, &req.OpenedAt, &req.SignedAt, &req.SignedFileURL, &signedValues, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &req.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", req.ID, err)
		}
	}
	if len(signedValues) > 0 {
		if err := json.Unmarshal(signedValues, &req.SignedFieldValues); err != nil {
			return nil, fmt.Errorf("failed to decode signed values of %s: %w", req.ID, err)
		}
	}
	return &req, nil
}

func nonNilFields(fields []models.SigningField) []models.SigningField {
	if fields == nil {
		return []models.SigningField{}
	}
	return fields
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
