package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"legaldesk/pkg/config"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(&config.WhatsAppConfig{
		APIURL:     srv.URL,
		InstanceID: "1101",
		APIToken:   "tok",
	}, zaptest.NewLogger(t))
}

func TestSendMessageAddressing(t *testing.T) {
	var gotPath string
	var gotBody SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"idMessage":"MSG1"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).SendMessage(context.Background(), SendMessageRequest{ChatID: "972501234567@c.us", Message: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/waInstance1101/sendMessage/tok" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.ChatID != "972501234567@c.us" || gotBody.Message != "hi" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if resp.IDMessage != "MSG1" {
		t.Fatalf("unexpected id %q", resp.IDMessage)
	}
}

func TestSendFileByURLBody(t *testing.T) {
	var raw map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendFileByUrl/tok") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"idMessage":"F1"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).SendFileByURL(context.Background(), SendFileByURLRequest{
		ChatID: "1@c.us", URLFile: "https://x/y.pdf", FileName: "y.pdf", Caption: "sign please",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, k := range []string{"chatId", "urlFile", "fileName", "caption"} {
		if raw[k] == "" {
			t.Fatalf("missing %s in body %v", k, raw)
		}
	}
}

func TestProviderErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"chatId is invalid"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).SendMessage(context.Background(), SendMessageRequest{ChatID: "x", Message: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Body, "chatId") {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestUnconfiguredClientNeverCalls(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(&config.WhatsAppConfig{APIURL: srv.URL}, zaptest.NewLogger(t))
	if c.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := c.SendMessage(context.Background(), SendMessageRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if called {
		t.Fatalf("provider must not be called without credentials")
	}
}

func TestDownloadFileLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	data, ct, err := c.DownloadFile(context.Background(), srv.URL+"/f.pdf", 10)
	if err != nil || string(data) != "0123456789" || ct != "application/pdf" {
		t.Fatalf("unexpected download result %q %q %v", data, ct, err)
	}
	if _, _, err := c.DownloadFile(context.Background(), srv.URL+"/f.pdf", 9); err == nil {
		t.Fatalf("expected size limit error")
	}
}
