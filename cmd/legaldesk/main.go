package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"legaldesk/internal/api"
	"legaldesk/internal/api/handlers"
	"legaldesk/internal/repository"
	"legaldesk/internal/service"
	"legaldesk/internal/storage"
	"legaldesk/internal/whatsapp"
	"legaldesk/pkg/auth"
	"legaldesk/pkg/config"
	"legaldesk/pkg/logger"
	"legaldesk/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// @title LegalDesk API
// @version 1.0
// @description Document signing requests, WhatsApp delivery and document templates for law firms
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@legaldesk.app

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Format); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting LegalDesk service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	objects, err := storage.NewObjectStorage(ctx, &cfg.Storage, logger.Named("storage"))
	if err != nil {
		appLogger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	signingRepo := repository.NewSigningRequestRepository(db, appLogger)
	auditRepo := repository.NewAuditLogRepository(db, appLogger)
	intakeRepo := repository.NewIntakeRepository(db, appLogger)
	invitationRepo := repository.NewInvitationRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	waClient := whatsapp.NewClient(&cfg.WhatsApp, logger.Named("whatsapp"))
	if !waClient.Configured() {
		appLogger.Warn("WhatsApp credentials are not set, delivery is disabled")
	}

	intakeCompany := uuid.Nil
	if cfg.WhatsApp.IntakeCompanyID != "" {
		intakeCompany, err = uuid.Parse(cfg.WhatsApp.IntakeCompanyID)
		if err != nil {
			appLogger.Fatal("WHATSAPP_INTAKE_COMPANY_ID is not a UUID", zap.Error(err))
		}
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, invitationRepo, jwtManager, appLogger)
	store := service.NewSigningStore(signingRepo, auditRepo, objects, &cfg.Signing, cfg.Storage.SignedURLTTL, logger.Named("signing"))
	deliveryService := service.NewDeliveryService(waClient, objects, logger.Named("delivery"))
	signingService := service.NewSigningService(store, deliveryService, cfg.Signing.PublicBaseURL, logger.Named("signing"))
	templateService := service.NewTemplateService(logger.Named("templates"))
	intakeService := service.NewIntakeService(intakeRepo, objects, waClient, intakeCompany, cfg.Signing.MaxUploadBytes, logger.Named("intake"))

	// Initialize handlers
	maxUpload := cfg.Signing.MaxUploadBytes
	h := api.Handlers{
		Auth:      handlers.NewAuthHandler(authService, appLogger),
		Signing:   handlers.NewSigningHandler(signingService, maxUpload, cfg.Storage.SignedURLTTL, appLogger),
		Recipient: handlers.NewRecipientHandler(signingService, maxUpload, appLogger),
		Template:  handlers.NewTemplateHandler(templateService, maxUpload, appLogger),
		WhatsApp:  handlers.NewWhatsAppHandler(deliveryService, intakeService, cfg.WhatsApp.WebhookToken, appLogger),
	}

	// Setup router
	app := api.SetupRouter(h, jwtManager, userRepo, api.RouterConfig{BodyLimit: cfg.Server.BodyLimit}, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
