package service

import (
	"context"
	"time"

	"legaldesk/internal/models"
	"legaldesk/internal/repository"
	"legaldesk/internal/storage"
	"legaldesk/internal/whatsapp"

	"github.com/google/uuid"
)

type SigningRequestRepository interface {
	Create(ctx context.Context, req *models.SigningRequest) error
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*models.SigningRequest, error)
	GetByAccessToken(ctx context.Context, token string) (*models.SigningRequest, error)
	List(ctx context.Context, companyID uuid.UUID, filter repository.ListFilter) ([]*models.SigningRequest, error)
	Update(ctx context.Context, companyID, id uuid.UUID, upd repository.SigningRequestUpdate, allowed []models.Status) (bool, error)
	Transition(ctx context.Context, t repository.Transition) (bool, error)
	Complete(ctx context.Context, c repository.Completion) (bool, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.SigningAuditEntry) error
	ListByRequestID(ctx context.Context, companyID, requestID uuid.UUID) ([]*models.SigningAuditEntry, error)
	DeleteByRequestID(ctx context.Context, requestID uuid.UUID) error
}

type IntakeRepository interface {
	Create(ctx context.Context, msg *models.IntakeMessage) (bool, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.IntakeMessage, error)
	ListByCompanyID(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.IntakeMessage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *models.Invitation) error
	Consume(ctx context.Context, token string, userID uuid.UUID, now time.Time) (uuid.UUID, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, paths []string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

type Messenger interface {
	Configured() bool
	SendMessage(ctx context.Context, req whatsapp.SendMessageRequest) (*whatsapp.SendResponse, error)
	SendFileByURL(ctx context.Context, req whatsapp.SendFileByURLRequest) (*whatsapp.SendResponse, error)
}

type MediaDownloader interface {
	DownloadFile(ctx context.Context, url string, maxBytes int64) ([]byte, string, error)
}

var (
	_ SigningRequestRepository = (*repository.SigningRequestRepository)(nil)
	_ AuditLogRepository       = (*repository.AuditLogRepository)(nil)
	_ IntakeRepository         = (*repository.IntakeRepository)(nil)
	_ UserRepository           = (*repository.UserRepository)(nil)
	_ InvitationRepository     = (*repository.InvitationRepository)(nil)
	_ ObjectStorage            = (*storage.ObjectStorage)(nil)
	_ Messenger                = (*whatsapp.Client)(nil)
	_ MediaDownloader          = (*whatsapp.Client)(nil)
)
