package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"legaldesk/internal/models"
	"legaldesk/internal/repository"
	"legaldesk/internal/storage"
	"legaldesk/pkg/accesstoken"
	"legaldesk/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxExpiryDays = 365

// DownloadVariant selects which file of a signing request to link to.
type DownloadVariant string

const (
	DownloadOriginal DownloadVariant = "original"
	DownloadSigned   DownloadVariant = "signed"
)

type CreateParams struct {
	CompanyID      uuid.UUID
	CreatedBy      uuid.UUID
	FileName       string
	FileType       string
	Data           []byte
	Fields         []models.SigningField
	RecipientName  string
	RecipientPhone string
	RecipientEmail string
	ExpiryDays     int
}

// UpdateParams holds optional edits; nil members are left unchanged.
type UpdateParams struct {
	Fields         *[]models.SigningField
	RecipientName  *string
	RecipientPhone *string
	RecipientEmail *string
	ExpiryDays     *int
}

// editableStatuses are the stored statuses in which fields, recipient and expiry may change.
var editableStatuses = []models.Status{models.StatusDraft, models.StatusSent, models.StatusOpened}

// SigningStore translates lifecycle operations into storage and database writes and
// scopes every read and write to a company.
type SigningStore struct {
	repo         SigningRequestRepository
	audit        AuditLogRepository
	storage      ObjectStorage
	cfg          *config.SigningConfig
	signedURLTTL time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewSigningStore(
	repo SigningRequestRepository,
	audit AuditLogRepository,
	objects ObjectStorage,
	cfg *config.SigningConfig,
	signedURLTTL time.Duration,
	logger *zap.Logger,
) *SigningStore {
	if signedURLTTL <= 0 {
		signedURLTTL = time.Hour
	}
	return &SigningStore{
		repo:         repo,
		audit:        audit,
		storage:      objects,
		cfg:          cfg,
		signedURLTTL: signedURLTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// Create uploads the document and then inserts a draft request. A failed upload
// never produces a record. A failed insert leaves the uploaded object behind; it is
// logged, not removed.
func (s *SigningStore) Create(ctx context.Context, p CreateParams) (*models.SigningRequest, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	id := uuid.New()
	path := storage.ObjectPath(p.CompanyID.String(), id.String(), p.FileName, now)

	if err := s.storage.Upload(ctx, path, p.Data, p.FileType); err != nil {
		return nil, fmt.Errorf("%w: failed to upload document: %w", ErrStorage, err)
	}

	req := &models.SigningRequest{
		ID:             id,
		CompanyID:      p.CompanyID,
		CreatedBy:      p.CreatedBy,
		FileName:       strings.TrimSpace(p.FileName),
		FileURL:        path,
		FileType:       optional(p.FileType),
		Fields:         p.Fields,
		RecipientName:  optional(strings.TrimSpace(p.RecipientName)),
		RecipientPhone: strings.TrimSpace(p.RecipientPhone),
		RecipientEmail: optional(strings.TrimSpace(p.RecipientEmail)),
		AccessToken:    accesstoken.Generate(s.tokenLength()),
		Status:         models.StatusDraft,
		ExpiresAt:      now.Add(s.expiryDuration(p.ExpiryDays)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Fields == nil {
		req.Fields = []models.SigningField{}
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.Warn("Signing request insert failed after upload, object left in storage",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: failed to create signing request: %w", ErrDatabase, err)
	}

	s.logger.Info("Signing request created",
		zap.String("id", id.String()),
		zap.String("company_id", p.CompanyID.String()),
	)
	return req, nil
}

func (s *SigningStore) Get(ctx context.Context, companyID, id uuid.UUID) (*models.SigningRequest, error) {
	req, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, dbError("load signing request", err)
	}
	return req, nil
}

func (s *SigningStore) GetByAccessToken(ctx context.Context, token string) (*models.SigningRequest, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: signing link", ErrNotFound)
	}
	req, err := s.repo.GetByAccessToken(ctx, token)
	if err != nil {
		return nil, dbError("load signing request by token", err)
	}
	return req, nil
}

func (s *SigningStore) List(ctx context.Context, companyID uuid.UUID, status *models.Status, limit, offset int) ([]*models.SigningRequest, error) {
	reqs, err := s.repo.List(ctx, companyID, repository.ListFilter{
		Status: status,
		Now:    s.now(),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, dbError("list signing requests", err)
	}
	return reqs, nil
}

// Update merges the supplied edits. Expiry days are counted from now, not from creation.
func (s *SigningStore) Update(ctx context.Context, companyID, id uuid.UUID, p UpdateParams) (*models.SigningRequest, error) {
	req, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if eff := req.EffectiveStatus(now); eff.Terminal() {
		return nil, fmt.Errorf("%w: a %s request can no longer be edited", ErrInvalidTransition, eff)
	}

	upd := repository.SigningRequestUpdate{
		Fields:         p.Fields,
		RecipientName:  trimmed(p.RecipientName),
		RecipientPhone: trimmed(p.RecipientPhone),
		RecipientEmail: trimmed(p.RecipientEmail),
	}
	if upd.Fields != nil {
		if err := validateFields(*upd.Fields); err != nil {
			return nil, err
		}
	}
	if upd.RecipientPhone != nil && *upd.RecipientPhone == "" {
		return nil, validationError("recipient phone is required")
	}
	if upd.RecipientEmail != nil && *upd.RecipientEmail != "" {
		if _, err := mail.ParseAddress(*upd.RecipientEmail); err != nil {
			return nil, validationError("recipient email is invalid")
		}
	}
	if p.ExpiryDays != nil {
		if *p.ExpiryDays <= 0 || *p.ExpiryDays > maxExpiryDays {
			return nil, validationError("expiry days must be between 1 and %d", maxExpiryDays)
		}
		expiresAt := now.UTC().Add(s.expiryDuration(*p.ExpiryDays))
		upd.ExpiresAt = &expiresAt
	}
	if upd.Empty() {
		return req, nil
	}

	ok, err := s.repo.Update(ctx, companyID, id, upd, editableStatuses)
	if err != nil {
		return nil, dbError("update signing request", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: update of %s", ErrConflict, id)
	}
	return s.Get(ctx, companyID, id)
}

// SetStatus writes a status when the stored status is one of from. It reports
// whether the row matched.
func (s *SigningStore) SetStatus(ctx context.Context, t repository.Transition) (bool, error) {
	if t.Now.IsZero() {
		t.Now = s.now()
	}
	ok, err := s.repo.Transition(ctx, t)
	if err != nil {
		return false, dbError("update signing request status", err)
	}
	return ok, nil
}

// MarkSigned uploads the signed file and records the completion in one guarded write.
// When the guard fails the uploaded object is removed again.
func (s *SigningStore) MarkSigned(ctx context.Context, req *models.SigningRequest, values map[string]string, data []byte, fileName, contentType string) (bool, error) {
	now := s.now().UTC()
	path := storage.ObjectPath(req.CompanyID.String(), req.ID.String(), fileName, now)
	if err := s.storage.Upload(ctx, path, data, contentType); err != nil {
		return false, fmt.Errorf("%w: failed to upload signed document: %w", ErrStorage, err)
	}

	ok, err := s.repo.Complete(ctx, repository.Completion{
		ID:            req.ID,
		From:          models.SourceStatuses(models.StatusSigned),
		SignedAt:      now,
		SignedFileURL: path,
		Values:        values,
	})
	if err != nil || !ok {
		if rmErr := s.storage.Remove(ctx, []string{path}); rmErr != nil {
			s.logger.Warn("Failed to remove unused signed document", zap.String("path", path), zap.Error(rmErr))
		}
	}
	if err != nil {
		return false, dbError("record signature", err)
	}
	return ok, nil
}

// Delete removes a request created by userID. Storage objects and audit rows go
// first so that a failure leaves the record in place for a retry.
func (s *SigningStore) Delete(ctx context.Context, companyID, id, userID uuid.UUID) error {
	req, err := s.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	if req.CreatedBy != userID {
		s.logger.Warn("Rejected delete by non-creator",
			zap.String("id", id.String()),
			zap.String("user_id", userID.String()),
		)
		return fmt.Errorf("%w: only the creator can delete this signing request", ErrForbidden)
	}

	paths := []string{req.FileURL}
	if req.SignedFileURL != nil && *req.SignedFileURL != "" {
		paths = append(paths, *req.SignedFileURL)
	}
	if err := s.storage.Remove(ctx, paths); err != nil {
		return fmt.Errorf("%w: failed to remove documents: %w", ErrStorage, err)
	}
	if err := s.audit.DeleteByRequestID(ctx, id); err != nil {
		return dbError("delete audit log", err)
	}
	if err := s.repo.Delete(ctx, companyID, id); err != nil {
		return dbError("delete signing request", err)
	}

	s.logger.Info("Signing request deleted", zap.String("id", id.String()))
	return nil
}

// SignedDownloadURL returns a short-lived URL for the original or the signed file.
func (s *SigningStore) SignedDownloadURL(ctx context.Context, companyID, id uuid.UUID, variant DownloadVariant) (string, error) {
	req, err := s.Get(ctx, companyID, id)
	if err != nil {
		return "", err
	}

	var path string
	switch variant {
	case DownloadOriginal, "":
		path = req.FileURL
	case DownloadSigned:
		if req.SignedFileURL == nil || *req.SignedFileURL == "" {
			return "", fmt.Errorf("%w: signed file not available yet", ErrNotFound)
		}
		path = *req.SignedFileURL
	default:
		return "", validationError("unknown download variant %q", variant)
	}
	return s.SignedURL(ctx, path)
}

func (s *SigningStore) SignedURL(ctx context.Context, path string) (string, error) {
	url, err := s.storage.SignedURL(ctx, path, s.signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create download link: %w", ErrStorage, err)
	}
	return url, nil
}

func (s *SigningStore) AuditTrail(ctx context.Context, companyID, id uuid.UUID) ([]*models.SigningAuditEntry, error) {
	entries, err := s.audit.ListByRequestID(ctx, companyID, id)
	if err != nil {
		return nil, dbError("load audit log", err)
	}
	return entries, nil
}

// Record appends an audit row. Failures are logged and swallowed.
func (s *SigningStore) Record(ctx context.Context, req *models.SigningRequest, action models.AuditAction, prev *models.Status, next models.Status, actor, details string) {
	entry := &models.SigningAuditEntry{
		ID:               uuid.New(),
		SigningRequestID: req.ID,
		CompanyID:        req.CompanyID,
		Action:           action,
		PreviousStatus:   prev,
		NewStatus:        next,
		Actor:            actor,
		Details:          details,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry",
			zap.String("id", req.ID.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func (s *SigningStore) tokenLength() int {
	if s.cfg != nil && s.cfg.TokenLength > 0 {
		return s.cfg.TokenLength
	}
	return accesstoken.DefaultLength
}

func (s *SigningStore) expiryDuration(days int) time.Duration {
	if days <= 0 {
		days = 30
		if s.cfg != nil && s.cfg.DefaultExpiryDays > 0 {
			days = s.cfg.DefaultExpiryDays
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

func validateCreate(p CreateParams) error {
	if p.CompanyID == uuid.Nil || p.CreatedBy == uuid.Nil {
		return fmt.Errorf("%w: missing company or user", ErrUnauthorized)
	}
	if len(p.Data) == 0 {
		return validationError("document file is required")
	}
	if strings.TrimSpace(p.FileName) == "" {
		return validationError("file name is required")
	}
	if strings.TrimSpace(p.RecipientPhone) == "" {
		return validationError("recipient phone is required")
	}
	if email := strings.TrimSpace(p.RecipientEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return validationError("recipient email is invalid")
		}
	}
	if p.ExpiryDays < 0 || p.ExpiryDays > maxExpiryDays {
		return validationError("expiry days must be between 1 and %d", maxExpiryDays)
	}
	return validateFields(p.Fields)
}

func validateFields(fields []models.SigningField) error {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.ID) == "" {
			return validationError("field %d has no id", i)
		}
		if _, dup := seen[f.ID]; dup {
			return validationError("duplicate field id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
		if !f.Type.Valid() {
			return validationError("field %q has unknown type %q", f.ID, f.Type)
		}
		if f.Page < 0 {
			return validationError("field %q has a negative page", f.ID)
		}
		if !inUnit(f.X) || !inUnit(f.Y) || f.Width <= 0 || f.Height <= 0 ||
			f.X+f.Width > 1+1e-9 || f.Y+f.Height > 1+1e-9 {
			return validationError("field %q is outside the page", f.ID)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func dbError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: signing request", ErrNotFound)
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrDatabase, op, err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
