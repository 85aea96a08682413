package api

import (
	"legaldesk/docs"
	"legaldesk/internal/api/handlers"
	"legaldesk/pkg/auth"
	"legaldesk/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Signing   *handlers.SigningHandler
	Recipient *handlers.RecipientHandler
	Template  *handlers.TemplateHandler
	WhatsApp  *handlers.WhatsAppHandler
}

type RouterConfig struct {
	BodyLimit int
}

func SetupRouter(
	h Handlers,
	jwtManager *auth.JWTManager,
	users middleware.UserLookup,
	cfg RouterConfig,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				appLogger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// Importing docs registers the swagger document through its init().
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", h.Auth.Register)
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/refresh", h.Auth.RefreshToken)

	// Recipient routes, authenticated by the access token in the path
	sign := app.Group("/sign")
	sign.Get("/:token", h.Recipient.Open)
	sign.Post("/:token", h.Recipient.Complete)

	// Provider push notifications, bearer webhook token
	app.Post("/webhooks/whatsapp", h.WhatsApp.Webhook)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, users, appLogger))

	protected.Get("/user/me", h.Auth.Me)
	protected.Post("/user/invitations", h.Auth.Invite)

	requests := protected.Group("/signing-requests")
	requests.Post("", h.Signing.Create)
	requests.Get("", h.Signing.List)
	requests.Get("/:id", h.Signing.Get)
	requests.Patch("/:id", h.Signing.Update)
	requests.Delete("/:id", h.Signing.Delete)
	requests.Post("/:id/send", h.Signing.Send)
	requests.Post("/:id/cancel", h.Signing.Cancel)
	requests.Get("/:id/download", h.Signing.Download)
	requests.Get("/:id/audit", h.Signing.Audit)

	templates := protected.Group("/templates")
	templates.Post("/parse", h.Template.Parse)
	templates.Post("/preview", h.Template.Preview)
	templates.Post("/generate", h.Template.Generate)

	whatsapp := protected.Group("/whatsapp")
	whatsapp.Post("/send", h.WhatsApp.Send)
	whatsapp.Get("/intake", h.WhatsApp.ListIntake)

	return app
}
