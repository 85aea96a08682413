package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SIGNING_DEFAULT_EXPIRY_DAYS", "")
	t.Setenv("WHATSAPP_INSTANCE_ID", "")
	t.Setenv("WHATSAPP_API_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Signing.DefaultExpiryDays != 30 {
		t.Fatalf("expected default expiry 30, got %d", cfg.Signing.DefaultExpiryDays)
	}
	if cfg.Storage.SignedURLTTL != time.Hour {
		t.Fatalf("expected 1h signed url ttl, got %s", cfg.Storage.SignedURLTTL)
	}
	if cfg.Storage.Bucket != "documents" {
		t.Fatalf("unexpected bucket %q", cfg.Storage.Bucket)
	}
	if cfg.WhatsApp.Configured() {
		t.Fatalf("whatsapp must not be configured without credentials")
	}
}

func TestLoadRejectsBadExpiry(t *testing.T) {
	t.Setenv("SIGNING_DEFAULT_EXPIRY_DAYS", "-4")
	t.Setenv("SIGNING_TOKEN_LENGTH", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Signing.DefaultExpiryDays != 30 {
		t.Fatalf("negative expiry should fall back to 30, got %d", cfg.Signing.DefaultExpiryDays)
	}
	if cfg.Signing.TokenLength != 32 {
		t.Fatalf("short token length should fall back to 32, got %d", cfg.Signing.TokenLength)
	}
}

func TestWhatsAppConfigured(t *testing.T) {
	c := WhatsAppConfig{InstanceID: "1101", APIToken: "abc"}
	if !c.Configured() {
		t.Fatalf("expected configured")
	}
	c.APIToken = ""
	if c.Configured() {
		t.Fatalf("expected not configured without token")
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5433", User: "legal", Password: "p@ss word", DBName: "legaldesk", SSLMode: "require"}
	want := "postgres://legal:p%40ss%20word@db:5433/legaldesk?sslmode=require"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
