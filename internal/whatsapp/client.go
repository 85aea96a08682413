// Package whatsapp is a client for the Green API WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"legaldesk/pkg/config"

	"go.uber.org/zap"
)

const (
	OperationSendMessage   = "sendMessage"
	OperationSendFileByURL = "sendFileByUrl"

	// ChatSuffix is the provider's suffix for direct (non-group) chats.
	ChatSuffix = "@c.us"

	maxErrorBody = 512
)

var ErrNotConfigured = errors.New("whatsapp credentials are not configured")

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API error: status %d: %s", e.StatusCode, e.Body)
}

type SendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type SendFileByURLRequest struct {
	ChatID   string `json:"chatId"`
	URLFile  string `json:"urlFile"`
	FileName string `json:"fileName"`
	Caption  string `json:"caption,omitempty"`
}

type SendResponse struct {
	IDMessage string `json:"idMessage"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	configured bool
	logger     *zap.Logger
}

// NewClient builds a client addressed as {apiURL}/waInstance{instanceID}/{operation}/{token}.
// A client without credentials is still returned; every call then fails with ErrNotConfigured.
func NewClient(cfg *config.WhatsAppConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.APIURL, "/") + "/waInstance" + cfg.InstanceID,
		token:      cfg.APIToken,
		configured: cfg.Configured(),
		logger:     logger,
	}
}

func (c *Client) Configured() bool {
	return c.configured
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendResponse, error) {
	return c.call(ctx, OperationSendMessage, req)
}

func (c *Client) SendFileByURL(ctx context.Context, req SendFileByURLRequest) (*SendResponse, error) {
	return c.call(ctx, OperationSendFileByURL, req)
}

// DownloadFile fetches a provider-hosted media URL, refusing bodies over maxBytes.
func (c *Client) DownloadFile(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("file exceeds %d bytes", maxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) call(ctx context.Context, operation string, payload any) (*SendResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, operation, c.token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
		c.logger.Warn("WhatsApp provider rejected request",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
		)
		return nil, apiErr
	}

	var out SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}

	c.logger.Info("WhatsApp message accepted",
		zap.String("operation", operation),
		zap.String("message_id", out.IDMessage),
	)
	return &out, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
