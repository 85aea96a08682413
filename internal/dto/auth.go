package dto

import "time"

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	// InviteToken joins the inviting firm; empty starts a new one.
	InviteToken string `json:"invite_token,omitempty"`
	// CompanyID is refused. It is parsed only so that the refusal is explicit.
	CompanyID string `json:"company_id,omitempty"`
}

type InvitationResponse struct {
	InviteToken string    `json:"invite_token"`
	CompanyID   string    `json:"company_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}
