package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/models"
	"legaldesk/internal/repository"
	"legaldesk/pkg/accesstoken"
	"legaldesk/pkg/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	invitationTTL     = 7 * 24 * time.Hour
)

type AuthService struct {
	userRepo    UserRepository
	invitations InvitationRepository
	jwtManager  *auth.JWTManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(userRepo UserRepository, invitations InvitationRepository, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		invitations: invitations,
		jwtManager:  jwtManager,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates a user. With an invite token the user joins the inviting
// company; otherwise a new company is founded. A company id in the request is
// rejected.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("email is invalid")
	}
	if strings.TrimSpace(req.Username) == "" {
		return nil, validationError("username is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	if strings.TrimSpace(req.CompanyID) != "" {
		return nil, validationError("company_id is not accepted, join an existing company with an invite_token")
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	if existingUser != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	userID := uuid.New()
	companyID := uuid.New()
	if token := strings.TrimSpace(req.InviteToken); token != "" {
		companyID, err = s.invitations.Consume(ctx, token, userID, now)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invitation is invalid, used or expired", ErrForbidden)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
		}
	}

	user := &models.User{
		ID:        userID,
		CompanyID: companyID,
		Username:  strings.TrimSpace(req.Username),
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("company_id", companyID.String()),
	)
	return s.issueTokens(user)
}

// CreateInvitation issues a single-use token that lets one new user join companyID.
func (s *AuthService) CreateInvitation(ctx context.Context, companyID, userID uuid.UUID) (*dto.InvitationResponse, error) {
	now := s.now()
	inv := &models.Invitation{
		Token:     accesstoken.Generate(accesstoken.DefaultLength),
		CompanyID: companyID,
		CreatedBy: userID,
		ExpiresAt: now.Add(invitationTTL),
		CreatedAt: now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	s.logger.Info("Invitation created",
		zap.String("company_id", companyID.String()),
		zap.String("created_by", userID.String()),
	)
	return &dto.InvitationResponse{
		InviteToken: inv.Token,
		CompanyID:   companyID.String(),
		ExpiresAt:   inv.ExpiresAt,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPasswordHash(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*dto.AuthResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.issueTokens(user)
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	resp := userResponse(user)
	return &resp, nil
}

func userResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID.String(),
		CompanyID: user.CompanyID.String(),
		Username:  user.Username,
		Email:     user.Email,
	}
}

func (s *AuthService) issueTokens(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID.String(), user.CompanyID.String(), user.Username, user.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID.String(), user.CompanyID.String())
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtManager.GetTokenDuration().Seconds()),
		User:         userResponse(user),
	}, nil
}
