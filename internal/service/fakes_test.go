package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"legaldesk/internal/models"
	"legaldesk/internal/repository"
	"legaldesk/internal/whatsapp"
	"legaldesk/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

type fakeSigningRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.SigningRequest
	createErr error
	// completeGuardFails makes Complete report a lost race.
	completeGuardFails bool
}

func newFakeSigningRepo() *fakeSigningRepo {
	return &fakeSigningRepo{rows: make(map[uuid.UUID]*models.SigningRequest)}
}

func clone(r *models.SigningRequest) *models.SigningRequest {
	c := *r
	c.Fields = slices.Clone(r.Fields)
	return &c
}

func (f *fakeSigningRepo) Create(_ context.Context, req *models.SigningRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[req.ID] = clone(req)
	return nil
}

func (f *fakeSigningRepo) GetByID(_ context.Context, companyID, id uuid.UUID) (*models.SigningRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return clone(r), nil
}

func (f *fakeSigningRepo) GetByAccessToken(_ context.Context, token string) (*models.SigningRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.AccessToken == token {
			return clone(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSigningRepo) List(_ context.Context, companyID uuid.UUID, filter repository.ListFilter) ([]*models.SigningRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SigningRequest
	for _, r := range f.rows {
		if r.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && r.EffectiveStatus(filter.Now) != *filter.Status {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (f *fakeSigningRepo) Update(_ context.Context, companyID, id uuid.UUID, upd repository.SigningRequestUpdate, allowed []models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.CompanyID != companyID || !slices.Contains(allowed, r.Status) {
		return false, nil
	}
	if upd.Fields != nil {
		r.Fields = slices.Clone(*upd.Fields)
	}
	if upd.RecipientName != nil {
		r.RecipientName = upd.RecipientName
	}
	if upd.RecipientPhone != nil {
		r.RecipientPhone = *upd.RecipientPhone
	}
	if upd.RecipientEmail != nil {
		r.RecipientEmail = upd.RecipientEmail
	}
	if upd.ExpiresAt != nil {
		r.ExpiresAt = *upd.ExpiresAt
	}
	return true, nil
}

func (f *fakeSigningRepo) Transition(_ context.Context, t repository.Transition) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[t.ID]
	if !ok || (t.CompanyID != uuid.Nil && r.CompanyID != t.CompanyID) || !slices.Contains(t.From, r.Status) {
		return false, nil
	}
	if t.RequireUnexpired && !r.ExpiresAt.After(t.Now) {
		return false, nil
	}
	r.Status = t.To
	r.UpdatedAt = t.Now
	now := t.Now
	switch t.To {
	case models.StatusSent:
		if r.SentAt == nil {
			r.SentAt = &now
		}
	case models.StatusOpened:
		if r.OpenedAt == nil {
			r.OpenedAt = &now
		}
	}
	return true, nil
}

func (f *fakeSigningRepo) Complete(_ context.Context, c repository.Completion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeGuardFails {
		return false, nil
	}
	r, ok := f.rows[c.ID]
	if !ok || !slices.Contains(c.From, r.Status) || !r.ExpiresAt.After(c.SignedAt) || r.SignedAt != nil {
		return false, nil
	}
	signedAt := c.SignedAt
	path := c.SignedFileURL
	r.Status = models.StatusSigned
	r.SignedAt = &signedAt
	r.SignedFileURL = &path
	r.SignedFieldValues = c.Values
	return true, nil
}

func (f *fakeSigningRepo) Delete(_ context.Context, companyID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.CompanyID != companyID {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeSigningRepo) row(id uuid.UUID) *models.SigningRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []*models.SigningAuditEntry
	createErr error
	deleted   []uuid.UUID
}

func (f *fakeAuditRepo) Create(_ context.Context, e *models.SigningAuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditRepo) ListByRequestID(_ context.Context, companyID, requestID uuid.UUID) ([]*models.SigningAuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SigningAuditEntry
	for _, e := range f.entries {
		if e.CompanyID == companyID && e.SigningRequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) DeleteByRequestID(_ context.Context, requestID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, requestID)
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.SigningRequestID != requestID {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeAuditRepo) actions() []models.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditAction, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	removeErr error
	signErr   error
	removed   []string
	signed    []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[path] = data
	return nil
}

func (f *fakeStorage) Remove(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, p := range paths {
		delete(f.objects, p)
		f.removed = append(f.removed, p)
	}
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signed = append(f.signed, path)
	return fmt.Sprintf("https://storage.test/%s?expires=%d", path, int(ttl.Seconds())), nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeMessenger struct {
	mu         sync.Mutex
	configured bool
	err        error
	texts      []whatsapp.SendMessageRequest
	files      []whatsapp.SendFileByURLRequest
}

func (f *fakeMessenger) Configured() bool { return f.configured }

func (f *fakeMessenger) SendMessage(_ context.Context, req whatsapp.SendMessageRequest) (*whatsapp.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, req)
	if f.err != nil {
		return nil, f.err
	}
	return &whatsapp.SendResponse{IDMessage: fmt.Sprintf("TXT%d", len(f.texts))}, nil
}

func (f *fakeMessenger) SendFileByURL(_ context.Context, req whatsapp.SendFileByURLRequest) (*whatsapp.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, req)
	if f.err != nil {
		return nil, f.err
	}
	return &whatsapp.SendResponse{IDMessage: fmt.Sprintf("FILE%d", len(f.files))}, nil
}

func (f *fakeMessenger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts) + len(f.files)
}

// fixture wires the signing components over fakes with a fixed clock.
type fixture struct {
	repo      *fakeSigningRepo
	audit     *fakeAuditRepo
	storage   *fakeStorage
	messenger *fakeMessenger
	store     *SigningStore
	delivery  *DeliveryService
	svc       *SigningService
	now       time.Time
	company   uuid.UUID
	owner     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{
		repo:      newFakeSigningRepo(),
		audit:     &fakeAuditRepo{},
		storage:   newFakeStorage(),
		messenger: &fakeMessenger{configured: true},
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		company:   uuid.New(),
		owner:     uuid.New(),
	}
	f.store = NewSigningStore(f.repo, f.audit, f.storage, &config.SigningConfig{DefaultExpiryDays: 30, TokenLength: 32}, time.Hour, logger)
	f.store.now = f.clock
	f.delivery = NewDeliveryService(f.messenger, f.storage, logger)
	f.svc = NewSigningService(f.store, f.delivery, "https://app.legaldesk.test/", logger)
	f.svc.now = f.clock
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

func (f *fixture) create(t *testing.T, fields ...models.SigningField) *models.SigningRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), CreateParams{
		CompanyID:      f.company,
		CreatedBy:      f.owner,
		FileName:       "agreement.pdf",
		FileType:       "application/pdf",
		Data:           []byte("%PDF-1.7"),
		Fields:         fields,
		RecipientName:  "Dana Levi",
		RecipientPhone: "050-1234567",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return req
}

// withStatus forces a stored status, bypassing the lifecycle.
func (f *fixture) withStatus(id uuid.UUID, status models.Status) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.rows[id].Status = status
}
