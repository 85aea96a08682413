package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"legaldesk/internal/storage"
	"legaldesk/internal/whatsapp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DeliveryFailureKind string

const (
	FailureCredentialsMissing DeliveryFailureKind = "credentials_missing"
	FailureInvalidRequest     DeliveryFailureKind = "invalid_request"
	FailureProviderError      DeliveryFailureKind = "provider_error"
)

// DeliveryError describes a failed send. It matches ErrConfiguration, ErrValidation or
// ErrProvider under errors.Is, depending on Kind.
type DeliveryError struct {
	Kind       DeliveryFailureKind
	Message    string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("whatsapp delivery failed (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("whatsapp delivery failed (%s): %s", e.Kind, e.Message)
}

func (e *DeliveryError) Unwrap() []error {
	var kind error
	switch e.Kind {
	case FailureCredentialsMissing:
		kind = ErrConfiguration
	case FailureInvalidRequest:
		kind = ErrValidation
	default:
		kind = ErrProvider
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// Delivery is one outbound WhatsApp message. FileURL may be a public URL or a
// storage path under CompanyID's prefix; a non-empty FileURL sends the file with
// Message as its caption.
type Delivery struct {
	CompanyID uuid.UUID
	Phone     string
	Message   string
	FileURL   string
	FileName  string
}

type DeliveryResult struct {
	ChatID    string
	MessageID string
	Operation string
}

const deliveryLinkTTL = time.Hour

type DeliveryService struct {
	messenger Messenger
	storage   ObjectStorage
	logger    *zap.Logger
}

func NewDeliveryService(messenger Messenger, objects ObjectStorage, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{
		messenger: messenger,
		storage:   objects,
		logger:    logger,
	}
}

// NormalizePhone turns a local or international number into a provider chat id.
// "050-123 4567" becomes "972501234567@c.us". Values that already carry a
// suffix are only stripped of punctuation.
func NormalizePhone(raw string) (string, error) {
	number, suffix := raw, ""
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		number, suffix = raw[:i], raw[i:]
	}

	number = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '(', ')', '+', '.':
			return -1
		}
		return r
	}, number)

	if number == "" {
		return "", validationError("phone number is required")
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "", validationError("phone number %q contains invalid characters", raw)
		}
	}

	switch {
	case strings.HasPrefix(number, "00"):
		number = number[2:]
	case strings.HasPrefix(number, "0"):
		number = "972" + number[1:]
	}
	if number == "" {
		return "", validationError("phone number is required")
	}

	if suffix == "" || suffix == "@" {
		suffix = whatsapp.ChatSuffix
	}
	return number + suffix, nil
}

// Send makes exactly one provider call. A storage path in FileURL must belong to
// the sending company and is exchanged for a signed URL first; if either check
// fails nothing is sent.
func (s *DeliveryService) Send(ctx context.Context, d Delivery) (*DeliveryResult, error) {
	message := strings.TrimSpace(d.Message)
	fileURL := strings.TrimSpace(d.FileURL)
	if strings.TrimSpace(d.Phone) == "" {
		return nil, &DeliveryError{Kind: FailureInvalidRequest, Message: "phone is required"}
	}
	if message == "" && fileURL == "" {
		return nil, &DeliveryError{Kind: FailureInvalidRequest, Message: "either a message or a file is required"}
	}
	if fileURL != "" && !storage.IsRemoteURL(fileURL) &&
		(d.CompanyID == uuid.Nil || !storage.InTenant(fileURL, d.CompanyID.String())) {
		s.logger.Warn("Rejected attachment outside company storage",
			zap.String("company_id", d.CompanyID.String()),
			zap.String("path", fileURL),
		)
		return nil, fmt.Errorf("%w: attachment is not stored for this company", ErrForbidden)
	}

	if !s.messenger.Configured() {
		return nil, &DeliveryError{
			Kind:    FailureCredentialsMissing,
			Message: "WhatsApp credentials are not configured. Set WHATSAPP_INSTANCE_ID and WHATSAPP_API_TOKEN.",
		}
	}

	chatID, err := NormalizePhone(d.Phone)
	if err != nil {
		return nil, &DeliveryError{Kind: FailureInvalidRequest, Message: "a valid phone number is required", Err: err}
	}

	if fileURL == "" {
		resp, err := s.messenger.SendMessage(ctx, whatsapp.SendMessageRequest{ChatID: chatID, Message: message})
		if err != nil {
			return nil, s.providerFailure(whatsapp.OperationSendMessage, err)
		}
		return &DeliveryResult{ChatID: chatID, MessageID: resp.IDMessage, Operation: whatsapp.OperationSendMessage}, nil
	}

	if !storage.IsRemoteURL(fileURL) {
		signed, err := s.storage.SignedURL(ctx, fileURL, deliveryLinkTTL)
		if err != nil {
			s.logger.Error("Failed to sign attachment URL", zap.String("path", fileURL), zap.Error(err))
			return nil, fmt.Errorf("%w: failed to create attachment link: %w", ErrStorage, err)
		}
		fileURL = signed
	}

	fileName := strings.TrimSpace(d.FileName)
	if fileName == "" {
		fileName = "document"
	}

	resp, err := s.messenger.SendFileByURL(ctx, whatsapp.SendFileByURLRequest{
		ChatID:   chatID,
		URLFile:  fileURL,
		FileName: fileName,
		Caption:  message,
	})
	if err != nil {
		return nil, s.providerFailure(whatsapp.OperationSendFileByURL, err)
	}
	return &DeliveryResult{ChatID: chatID, MessageID: resp.IDMessage, Operation: whatsapp.OperationSendFileByURL}, nil
}

func (s *DeliveryService) providerFailure(operation string, err error) error {
	s.logger.Error("WhatsApp delivery failed", zap.String("operation", operation), zap.Error(err))

	if errors.Is(err, whatsapp.ErrNotConfigured) {
		return &DeliveryError{Kind: FailureCredentialsMissing, Message: "WhatsApp credentials are not configured", Err: err}
	}

	var apiErr *whatsapp.APIError
	if errors.As(err, &apiErr) {
		kind := FailureProviderError
		if apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError {
			kind = FailureInvalidRequest
		}
		msg := apiErr.Body
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &DeliveryError{Kind: kind, Message: msg, StatusCode: apiErr.StatusCode, Err: err}
	}

	return &DeliveryError{Kind: FailureProviderError, Message: "WhatsApp provider is unreachable", Err: err}
}
