package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/models"
	"legaldesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SendOptions struct {
	AttachDocument bool
	Message        string
}

type SendResult struct {
	Request  *models.SigningRequest
	Delivery *DeliveryResult
}

type CompleteParams struct {
	Values      map[string]string
	Data        []byte
	FileName    string
	ContentType string
}

// SigningService drives a signing request through its lifecycle:
//
//	draft -> sent -> opened -> signed
//	sent, opened -> cancelled
//	draft, sent, opened -> expired (derived from expires_at)
//
// Every write is conditional on the status that was read, so concurrent callers
// cannot both win a transition.
type SigningService struct {
	store         *SigningStore
	delivery      *DeliveryService
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

func NewSigningService(store *SigningStore, delivery *DeliveryService, publicBaseURL string, logger *zap.Logger) *SigningService {
	return &SigningService{
		store:         store,
		delivery:      delivery,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

func (s *SigningService) Now() time.Time {
	return s.now()
}

// BuildSigningLink returns the public page for a token, e.g. https://app.example/sign/AbC...
func BuildSigningLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/sign/" + url.PathEscape(token)
}

func (s *SigningService) SigningLink(req *models.SigningRequest) string {
	if s.publicBaseURL == "" {
		return ""
	}
	return BuildSigningLink(s.publicBaseURL, req.AccessToken)
}

func (s *SigningService) Create(ctx context.Context, p CreateParams) (*models.SigningRequest, error) {
	req, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.store.Record(ctx, req, models.AuditCreated, nil, models.StatusDraft, p.CreatedBy.String(), req.FileName)
	return req, nil
}

func (s *SigningService) Get(ctx context.Context, companyID, id uuid.UUID) (*models.SigningRequest, error) {
	return s.store.Get(ctx, companyID, id)
}

func (s *SigningService) List(ctx context.Context, companyID uuid.UUID, status *models.Status, limit, offset int) ([]*models.SigningRequest, error) {
	return s.store.List(ctx, companyID, status, limit, offset)
}

func (s *SigningService) Update(ctx context.Context, companyID, userID, id uuid.UUID, p UpdateParams) (*models.SigningRequest, error) {
	req, err := s.store.Update(ctx, companyID, id, p)
	if err != nil {
		return nil, err
	}
	status := req.Status
	s.store.Record(ctx, req, models.AuditUpdated, &status, status, userID.String(), "")
	return req, nil
}

func (s *SigningService) Delete(ctx context.Context, companyID, id, userID uuid.UUID) error {
	return s.store.Delete(ctx, companyID, id, userID)
}

func (s *SigningService) DownloadURL(ctx context.Context, companyID, id uuid.UUID, variant DownloadVariant) (string, error) {
	return s.store.SignedDownloadURL(ctx, companyID, id, variant)
}

func (s *SigningService) AuditTrail(ctx context.Context, companyID, id uuid.UUID) ([]*models.SigningAuditEntry, error) {
	if _, err := s.store.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.store.AuditTrail(ctx, companyID, id)
}

// Send delivers the signing link over WhatsApp. A draft becomes sent; a sent or
// opened request keeps its status and token. The status is written only after the
// provider accepted the message.
func (s *SigningService) Send(ctx context.Context, companyID, userID, id uuid.UUID, opts SendOptions) (*SendResult, error) {
	req, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	current := req.EffectiveStatus(now)
	next, action := models.StatusSent, models.AuditSent
	if current == models.StatusOpened {
		next = models.StatusOpened
	}
	if current != models.StatusDraft {
		action = models.AuditResent
	}
	if !models.CanTransition(current, next) {
		return nil, &TransitionError{From: current, To: models.StatusSent}
	}
	if s.publicBaseURL == "" {
		return nil, fmt.Errorf("%w: SIGNING_PUBLIC_BASE_URL is not set", ErrConfiguration)
	}

	link := s.SigningLink(req)
	message := strings.TrimSpace(opts.Message)
	if message == "" {
		message = invitationMessage(req, link)
	} else {
		message = message + "\n\n" + link
	}

	delivery := Delivery{CompanyID: req.CompanyID, Phone: req.RecipientPhone, Message: message}
	if opts.AttachDocument {
		delivery.FileURL = req.FileURL
		delivery.FileName = req.FileName
	}

	result, err := s.delivery.Send(ctx, delivery)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.SetStatus(ctx, repository.Transition{
		ID:               req.ID,
		CompanyID:        companyID,
		From:             []models.Status{req.Status},
		To:               next,
		Now:              now,
		RequireUnexpired: true,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("Message delivered but status changed concurrently",
			zap.String("id", req.ID.String()),
			zap.String("message_id", result.MessageID),
		)
		return nil, fmt.Errorf("%w: %s", ErrConflict, req.ID)
	}

	prev := req.Status
	s.store.Record(ctx, req, action, &prev, next, userID.String(), result.MessageID)

	updated, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return &SendResult{Request: updated, Delivery: result}, nil
}

// Cancel withdraws a sent or opened request. Cancelling a cancelled request is a no-op.
func (s *SigningService) Cancel(ctx context.Context, companyID, userID, id uuid.UUID) (*models.SigningRequest, error) {
	req, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	current := req.EffectiveStatus(now)
	if current == models.StatusCancelled {
		return req, nil
	}
	if !models.CanTransition(current, models.StatusCancelled) {
		return nil, &TransitionError{From: current, To: models.StatusCancelled}
	}

	ok, err := s.store.SetStatus(ctx, repository.Transition{
		ID:               req.ID,
		CompanyID:        companyID,
		From:             []models.Status{req.Status},
		To:               models.StatusCancelled,
		Now:              now,
		RequireUnexpired: true,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConflict, req.ID)
	}

	prev := req.Status
	s.store.Record(ctx, req, models.AuditCancelled, &prev, models.StatusCancelled, userID.String(), "")
	return s.store.Get(ctx, companyID, id)
}

// Open is the recipient's first look at the document. A sent request becomes opened;
// later opens and opens of a signed request only return the view.
func (s *SigningService) Open(ctx context.Context, token string) (*dto.RecipientView, error) {
	req, err := s.store.GetByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	current := req.EffectiveStatus(now)
	if err := recipientGate(current); err != nil {
		return nil, err
	}

	documentURL, err := s.store.SignedURL(ctx, req.FileURL)
	if err != nil {
		return nil, err
	}

	if current == models.StatusSent {
		if err := s.markOpened(ctx, req, now); err != nil {
			return nil, err
		}
		current = models.StatusOpened
	}

	view := &dto.RecipientView{
		FileName:    req.FileName,
		DocumentURL: documentURL,
		Fields:      dto.FieldsFromModel(req.Fields),
		Status:      string(current),
		ExpiresAt:   req.ExpiresAt,
	}
	if req.FileType != nil {
		view.FileType = *req.FileType
	}
	if req.RecipientName != nil {
		view.RecipientName = *req.RecipientName
	}
	return view, nil
}

// Complete records the recipient's signature. The signed file, values and
// timestamp are written once, together.
func (s *SigningService) Complete(ctx context.Context, token string, p CompleteParams) (*models.SigningRequest, error) {
	req, err := s.store.GetByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	current := req.EffectiveStatus(now)
	if err := recipientGate(current); err != nil {
		return nil, err
	}
	if current != models.StatusSent && !models.CanTransition(current, models.StatusSigned) {
		return nil, &TransitionError{From: current, To: models.StatusSigned}
	}

	values, err := collectValues(req.Fields, p.Values)
	if err != nil {
		return nil, err
	}
	if len(p.Data) == 0 {
		return nil, validationError("signed document file is required")
	}

	fileName := p.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = "signed" + path.Ext(req.FileName)
	}

	// A submission on a link that was never loaded opens it first.
	if current == models.StatusSent {
		if err := s.markOpened(ctx, req, now); err != nil {
			return nil, err
		}
		current = models.StatusOpened
	}

	ok, err := s.store.MarkSigned(ctx, req, values, p.Data, fileName, p.ContentType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &TransitionError{From: current, To: models.StatusSigned}
	}

	prev := models.StatusOpened
	s.store.Record(ctx, req, models.AuditSigned, &prev, models.StatusSigned, models.ActorRecipient, "")
	s.logger.Info("Signing request signed", zap.String("id", req.ID.String()))

	return s.store.GetByAccessToken(ctx, token)
}

// markOpened moves a sent request to opened and stamps opened_at. Losing the
// race to a concurrent open is not an error.
func (s *SigningService) markOpened(ctx context.Context, req *models.SigningRequest, now time.Time) error {
	ok, err := s.store.SetStatus(ctx, repository.Transition{
		ID:               req.ID,
		From:             []models.Status{models.StatusSent},
		To:               models.StatusOpened,
		Now:              now,
		RequireUnexpired: true,
	})
	if err != nil {
		return err
	}
	if ok {
		prev := models.StatusSent
		s.store.Record(ctx, req, models.AuditOpened, &prev, models.StatusOpened, models.ActorRecipient, "")
	}
	return nil
}

// recipientGate hides drafts and reports why a link no longer works.
func recipientGate(status models.Status) error {
	switch status {
	case models.StatusDraft:
		return fmt.Errorf("%w: signing link", ErrNotFound)
	case models.StatusExpired:
		return ErrExpired
	case models.StatusCancelled:
		return ErrCancelled
	case models.StatusSent, models.StatusOpened, models.StatusSigned:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
}

func collectValues(fields []models.SigningField, submitted map[string]string) (map[string]string, error) {
	known := make(map[string]models.SigningField, len(fields))
	for _, f := range fields {
		known[f.ID] = f
	}
	for id := range submitted {
		if _, ok := known[id]; !ok {
			return nil, validationError("unknown field %q", id)
		}
	}

	values := make(map[string]string, len(submitted))
	var missing []string
	for _, f := range fields {
		v := strings.TrimSpace(submitted[f.ID])
		if v == "" {
			if f.Required {
				missing = append(missing, fieldName(f))
			}
			continue
		}
		values[f.ID] = v
	}
	if len(missing) > 0 {
		return nil, validationError("required fields are missing: %s", strings.Join(missing, ", "))
	}
	return values, nil
}

func fieldName(f models.SigningField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

func invitationMessage(req *models.SigningRequest, link string) string {
	var b strings.Builder
	if req.RecipientName != nil && *req.RecipientName != "" {
		fmt.Fprintf(&b, "שלום %s,\n", *req.RecipientName)
	} else {
		b.WriteString("שלום,\n")
	}
	fmt.Fprintf(&b, "נשלח אליך המסמך \"%s\" לחתימה.\n", req.FileName)
	fmt.Fprintf(&b, "לצפייה וחתימה: %s\n", link)
	fmt.Fprintf(&b, "הקישור בתוקף עד %s.", req.ExpiresAt.Format("02/01/2006"))
	return b.String()
}
