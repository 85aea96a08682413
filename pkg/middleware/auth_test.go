package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"legaldesk/internal/models"
	"legaldesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type stubUsers map[uuid.UUID]*models.User

func (s stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour, 24*time.Hour)
	user := &models.User{ID: uuid.New(), CompanyID: uuid.New(), Username: "dana", Email: "dana@firm.test"}
	users := stubUsers{user.ID: user}

	app := fiber.New()
	app.Use(AuthMiddleware(jwtManager, users, zaptest.NewLogger(t)))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("userID").(string) + "|" + c.Locals("companyID").(string))
	})

	access, err := jwtManager.GenerateToken(user.ID.String(), uuid.NewString(), user.Username, user.Email)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	refresh, err := jwtManager.GenerateRefreshToken(user.ID.String(), user.CompanyID.String())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	stranger, err := jwtManager.GenerateToken(uuid.NewString(), user.CompanyID.String(), "x", "x@y.test")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"unknown user", "Bearer " + stranger, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareUsesCompanyFromUserRow(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour, 24*time.Hour)
	user := &models.User{ID: uuid.New(), CompanyID: uuid.New()}

	var seen string
	app := fiber.New()
	app.Use(AuthMiddleware(jwtManager, stubUsers{user.ID: user}, zaptest.NewLogger(t)))
	app.Get("/", func(c *fiber.Ctx) error {
		seen, _ = c.Locals("companyID").(string)
		return c.SendStatus(fiber.StatusNoContent)
	})

	token, err := jwtManager.GenerateToken(user.ID.String(), uuid.NewString(), "", "")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if seen != user.CompanyID.String() {
		t.Fatalf("company = %q, want %q", seen, user.CompanyID)
	}
}
