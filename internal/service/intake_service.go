package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/models"
	"legaldesk/internal/repository"
	"legaldesk/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	webhookIncomingMessage = "incomingMessageReceived"
	messageTypeImage       = "imageMessage"
	messageTypeDocument    = "documentMessage"
)

// IntakeService stores documents that clients send to the firm's WhatsApp number.
type IntakeService struct {
	repo       IntakeRepository
	storage    ObjectStorage
	downloader MediaDownloader
	companyID  uuid.UUID
	maxBytes   int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewIntakeService files everything under companyID. A nil companyID disables intake.
func NewIntakeService(repo IntakeRepository, objects ObjectStorage, downloader MediaDownloader, companyID uuid.UUID, maxBytes int64, logger *zap.Logger) *IntakeService {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &IntakeService{
		repo:       repo,
		storage:    objects,
		downloader: downloader,
		companyID:  companyID,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleIncoming records an incoming file message. Other notifications are
// ignored and return nil. A redelivered message returns the row stored the
// first time without downloading the media again.
func (s *IntakeService) HandleIncoming(ctx context.Context, event *dto.WebhookEvent) (*models.IntakeMessage, error) {
	if event.TypeWebhook != webhookIncomingMessage {
		s.logger.Debug("Ignoring webhook", zap.String("type", event.TypeWebhook))
		return nil, nil
	}
	switch event.MessageData.TypeMessage {
	case messageTypeImage, messageTypeDocument:
	default:
		return nil, nil
	}

	file := event.MessageData.FileMessageData
	if file == nil || file.DownloadURL == "" {
		return nil, validationError("file message without download url")
	}
	if s.companyID == uuid.Nil {
		s.logger.Warn("Incoming file dropped, WHATSAPP_INTAKE_COMPANY_ID is not set",
			zap.String("message_id", event.IDMessage),
		)
		return nil, nil
	}

	existing, err := s.stored(ctx, event.IDMessage)
	if err != nil || existing != nil {
		return existing, err
	}

	data, contentType, err := s.downloader.DownloadFile(ctx, file.DownloadURL, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download media: %w", ErrProvider, err)
	}
	if file.MimeType != "" {
		contentType = file.MimeType
	}

	fileName := cleanProviderText(file.FileName)
	if fileName == "" {
		fileName = event.IDMessage
	}

	now := s.now().UTC()
	path := storage.ObjectPath(s.companyID.String(), "intake", fileName, now)
	if err := s.storage.Upload(ctx, path, data, contentType); err != nil {
		return nil, fmt.Errorf("%w: failed to store media: %w", ErrStorage, err)
	}

	receivedAt := now
	if event.Timestamp > 0 {
		receivedAt = time.Unix(event.Timestamp, 0).UTC()
	}

	msg := &models.IntakeMessage{
		ID:                uuid.New(),
		CompanyID:         s.companyID,
		SenderChatID:      event.SenderData.ChatID,
		SenderName:        cleanProviderText(event.SenderData.SenderName),
		ProviderMessageID: event.IDMessage,
		FileName:          fileName,
		FileURL:           &path,
		Caption:           cleanProviderText(file.Caption),
		ReceivedAt:        receivedAt,
	}
	created, err := s.repo.Create(ctx, msg)
	if err != nil || !created {
		if rmErr := s.storage.Remove(ctx, []string{path}); rmErr != nil {
			s.logger.Warn("Failed to remove unused intake media", zap.String("path", path), zap.Error(rmErr))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to record intake: %w", ErrDatabase, err)
	}
	if !created {
		s.logger.Info("WhatsApp document already received", zap.String("message_id", event.IDMessage))
		return s.stored(ctx, event.IDMessage)
	}

	s.logger.Info("WhatsApp document received",
		zap.String("message_id", event.IDMessage),
		zap.String("chat_id", event.SenderData.ChatID),
		zap.Int("size", len(data)),
	)
	return msg, nil
}

// stored returns the row recorded for a provider message id, or nil.
func (s *IntakeService) stored(ctx context.Context, providerMessageID string) (*models.IntakeMessage, error) {
	msg, err := s.repo.GetByProviderMessageID(ctx, providerMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to look up intake: %w", ErrDatabase, err)
	}
	return msg, nil
}

func (s *IntakeService) List(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.IntakeMessage, error) {
	msgs, err := s.repo.ListByCompanyID(ctx, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list intake: %w", ErrDatabase, err)
	}
	return msgs, nil
}
