package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	WhatsApp WhatsAppConfig
	Signing  SigningConfig
	Logger   LoggerConfig
}

// LoggerConfig selects the zap level and encoding. Format is "json" or "console".
type LoggerConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns       int32
	MinConns       int32
	ConnectRetries int
	ConnectBackoff time.Duration
}

// DSN renders the connection settings as a postgres:// URL.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// StorageConfig describes the S3-compatible object store. Endpoint is empty for AWS itself
// and set for Supabase storage, MinIO or LocalStack.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	SignedURLTTL    time.Duration
}

type WhatsAppConfig struct {
	APIURL          string
	InstanceID      string
	APIToken        string
	WebhookToken    string
	IntakeCompanyID string
	Timeout         time.Duration
}

// Configured reports whether provider credentials are present.
func (c WhatsAppConfig) Configured() bool {
	return c.InstanceID != "" && c.APIToken != ""
}

type SigningConfig struct {
	PublicBaseURL     string
	DefaultExpiryDays int
	TokenLength       int
	MaxUploadBytes    int64
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work too (Docker/K8s)
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	bodyLimitMB, _ := strconv.Atoi(getEnv("SERVER_BODY_LIMIT_MB", "25"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	signedURLTTL, _ := strconv.Atoi(getEnv("STORAGE_SIGNED_URL_TTL_SECONDS", "3600"))
	waTimeout, _ := strconv.Atoi(getEnv("WHATSAPP_TIMEOUT_SECONDS", "30"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(getEnv("DB_MIN_CONNS", "1"))
	connectRetries, _ := strconv.Atoi(getEnv("DB_CONNECT_RETRIES", "5"))
	expiryDays, err := strconv.Atoi(getEnv("SIGNING_DEFAULT_EXPIRY_DAYS", "30"))
	if err != nil || expiryDays <= 0 {
		expiryDays = 30
	}
	tokenLength, err := strconv.Atoi(getEnv("SIGNING_TOKEN_LENGTH", "32"))
	if err != nil || tokenLength < 16 {
		tokenLength = 32
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
			BodyLimit:    bodyLimitMB * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "legaldesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:       int32(maxConns),
			MinConns:       int32(minConns),
			ConnectRetries: connectRetries,
			ConnectBackoff: 2 * time.Second,
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Storage: StorageConfig{
			Bucket:          getEnv("STORAGE_BUCKET", "documents"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("STORAGE_USE_PATH_STYLE", "true") == "true",
			SignedURLTTL:    time.Duration(signedURLTTL) * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			APIURL:          getEnv("WHATSAPP_API_URL", "https://api.green-api.com"),
			InstanceID:      getEnv("WHATSAPP_INSTANCE_ID", ""),
			APIToken:        getEnv("WHATSAPP_API_TOKEN", ""),
			WebhookToken:    getEnv("WHATSAPP_WEBHOOK_TOKEN", ""),
			IntakeCompanyID: getEnv("WHATSAPP_INTAKE_COMPANY_ID", ""),
			Timeout:         time.Duration(waTimeout) * time.Second,
		},
		Signing: SigningConfig{
			PublicBaseURL:     getEnv("SIGNING_PUBLIC_BASE_URL", "http://localhost:8080"),
			DefaultExpiryDays: expiryDays,
			TokenLength:       tokenLength,
			MaxUploadBytes:    int64(bodyLimitMB) * 1024 * 1024,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
