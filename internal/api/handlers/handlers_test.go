package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"legaldesk/internal/models"
	"legaldesk/internal/service"
	"legaldesk/internal/whatsapp"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type stubMessenger struct {
	configured bool
	err        error
	calls      int
}

func (s *stubMessenger) Configured() bool { return s.configured }

func (s *stubMessenger) SendMessage(context.Context, whatsapp.SendMessageRequest) (*whatsapp.SendResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &whatsapp.SendResponse{IDMessage: "MSG-1"}, nil
}

func (s *stubMessenger) SendFileByURL(context.Context, whatsapp.SendFileByURLRequest) (*whatsapp.SendResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &whatsapp.SendResponse{IDMessage: "FILE-1"}, nil
}

type stubStorage struct{}

func (stubStorage) Upload(context.Context, string, []byte, string) error { return nil }
func (stubStorage) Remove(context.Context, []string) error               { return nil }
func (stubStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.test/" + path, nil
}

// withIdentity stands in for the auth middleware.
func withIdentity(userID, companyID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		c.Locals("companyID", companyID.String())
		return c.Next()
	}
}

// newWhatsAppApp signs requests in as a member of company; uuid.Nil leaves them anonymous.
func newWhatsAppApp(t *testing.T, messenger *stubMessenger, company uuid.UUID) *fiber.App {
	t.Helper()
	logger := zaptest.NewLogger(t)
	delivery := service.NewDeliveryService(messenger, stubStorage{}, logger)
	intake := service.NewIntakeService(nil, stubStorage{}, nil, uuid.Nil, 0, logger)
	h := NewWhatsAppHandler(delivery, intake, "hook-secret", logger)

	app := fiber.New()
	if company != uuid.Nil {
		app.Use(withIdentity(uuid.New(), company))
	}
	app.Post("/send", h.Send)
	app.Post("/webhook", h.Webhook)
	return app
}

func doJSON(t *testing.T, app *fiber.App, path, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestWhatsAppSend(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		configured    bool
		providerErr   error
		body          string
		wantStatus    int
		wantCalls     int
	}{
		{"unauthenticated", false, true, nil, `{"phone":"0501234567","message":"hi"}`, http.StatusUnauthorized, 0},
		{"missing phone", true, true, nil, `{"message":"hi"}`, http.StatusBadRequest, 0},
		{"missing content", true, true, nil, `{"phone":"0501234567"}`, http.StatusBadRequest, 0},
		{"bad phone", true, true, nil, `{"phone":"abc","message":"hi"}`, http.StatusBadRequest, 0},
		{"no credentials", true, false, nil, `{"phone":"0501234567","message":"hi"}`, http.StatusInternalServerError, 0},
		{"provider rejects", true, true, &whatsapp.APIError{StatusCode: 400, Body: "bad chat"}, `{"phone":"0501234567","message":"hi"}`, http.StatusBadRequest, 1},
		{"provider down", true, true, errors.New("connection refused"), `{"phone":"0501234567","message":"hi"}`, http.StatusBadGateway, 1},
		{"ok", true, true, nil, `{"phone":"0501234567","message":"hi"}`, http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := &stubMessenger{configured: tt.configured, err: tt.providerErr}
			company := uuid.Nil
			if tt.authenticated {
				company = uuid.New()
			}
			app := newWhatsAppApp(t, messenger, company)

			status, body := doJSON(t, app, "/send", tt.body, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if messenger.calls != tt.wantCalls {
				t.Fatalf("provider calls = %d, want %d", messenger.calls, tt.wantCalls)
			}
			if status == http.StatusOK {
				if body["message_id"] != "MSG-1" || body["chat_id"] != "972501234567@c.us" {
					t.Fatalf("unexpected body %v", body)
				}
			} else if body["error"] == "" {
				t.Fatalf("error body expected")
			}
		})
	}
}

func TestWhatsAppSendScopesStoragePaths(t *testing.T) {
	company := uuid.New()
	other := uuid.New()
	tests := []struct {
		name       string
		fileURL    string
		wantStatus int
		wantCalls  int
	}{
		{"own file", company.String() + "/req/1_abc.pdf", http.StatusOK, 1},
		{"public url", "https://cdn.example.com/a.pdf", http.StatusOK, 1},
		{"other company", other.String() + "/req/1_abc.pdf", http.StatusForbidden, 0},
		{"traversal", company.String() + "/../" + other.String() + "/req/1_abc.pdf", http.StatusForbidden, 0},
		{"unscoped", "req/1_abc.pdf", http.StatusForbidden, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := &stubMessenger{configured: true}
			app := newWhatsAppApp(t, messenger, company)

			body := fmt.Sprintf(`{"phone":"0501234567","file_url":%q,"file_name":"a.pdf"}`, tt.fileURL)
			status, resp := doJSON(t, app, "/send", body, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, resp)
			}
			if messenger.calls != tt.wantCalls {
				t.Fatalf("provider calls = %d, want %d", messenger.calls, tt.wantCalls)
			}
		})
	}
}

func TestWhatsAppWebhook(t *testing.T) {
	app := newWhatsAppApp(t, &stubMessenger{configured: true}, uuid.Nil)
	event := `{"typeWebhook":"outgoingMessageStatus","idMessage":"X"}`

	status, _ := doJSON(t, app, "/webhook", event, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", status)
	}
	status, _ = doJSON(t, app, "/webhook", event, map[string]string{"Authorization": "Bearer wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d", status)
	}

	auth := map[string]string{"Authorization": "Bearer hook-secret"}
	status, body := doJSON(t, app, "/webhook", event, auth)
	if status != http.StatusOK || body["status"] != "ignored" {
		t.Fatalf("unexpected response %d %v", status, body)
	}
	status, _ = doJSON(t, app, "/webhook", `{"idMessage":"X"}`, auth)
	if status != http.StatusBadRequest {
		t.Fatalf("missing typeWebhook: status %d", status)
	}
}

func TestWebhookRejectedWithoutConfiguredToken(t *testing.T) {
	h := &WhatsAppHandler{logger: zap.NewNop()}
	if h.authorizedWebhook("Bearer ") {
		t.Fatalf("an unset token must reject every call")
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&service.DeliveryError{Kind: service.FailureCredentialsMissing, Message: "x"}, http.StatusInternalServerError},
		{&service.DeliveryError{Kind: service.FailureInvalidRequest, Message: "x"}, http.StatusBadRequest},
		{&service.DeliveryError{Kind: service.FailureProviderError, Message: "x"}, http.StatusBadGateway},
		{&service.TransitionError{From: models.StatusSigned, To: models.StatusSent}, http.StatusConflict},
		{fmt.Errorf("%w: base url", service.ErrConfiguration), http.StatusInternalServerError},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{service.ErrUserExists, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrUserNotFound, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: phone", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: signing request", service.ErrNotFound), http.StatusNotFound},
		{service.ErrExpired, http.StatusGone},
		{service.ErrCancelled, http.StatusGone},
		{service.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: timeout", service.ErrProvider), http.StatusBadGateway},
		{fmt.Errorf("%w: disk", service.ErrStorage), http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		app := fiber.New()
		logger := zaptest.NewLogger(t)
		err := tt.err
		app.Get("/", func(c *fiber.Ctx) error {
			return respondError(c, logger, err, "Request failed")
		})

		resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if testErr != nil {
			t.Fatalf("request: %v", testErr)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	app := fiber.New()
	logger := zaptest.NewLogger(t)
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, logger, fmt.Errorf("%w: pq: relation missing", service.ErrDatabase), "Failed to load")
	})

	status, body := func() (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		out := map[string]any{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.StatusCode, out
	}()
	if status != http.StatusInternalServerError || body["error"] != "Failed to load" {
		t.Fatalf("unexpected response %d %v", status, body)
	}
}

func TestTemplatePreview(t *testing.T) {
	logger := zaptest.NewLogger(t)
	h := NewTemplateHandler(service.NewTemplateService(logger), 1<<20, logger)
	app := fiber.New()
	app.Post("/preview", h.Preview)

	status, body := doJSON(t, app, "/preview", `{"markup":"<p>{{name}} {{date}}</p>","values":{"name":"דוד"}}`, nil)
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	if body["markup"] != "<p>דוד {{date}}</p>" {
		t.Fatalf("unexpected markup %v", body["markup"])
	}
	unfilled, _ := body["unfilled"].([]any)
	if len(unfilled) != 1 || unfilled[0] != "date" {
		t.Fatalf("unexpected unfilled %v", body["unfilled"])
	}

	status, _ = doJSON(t, app, "/preview", `{"values":{}}`, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("empty markup: status %d", status)
	}
}
