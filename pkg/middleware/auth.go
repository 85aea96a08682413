package middleware

import (
	"context"
	"strings"

	"legaldesk/internal/models"
	"legaldesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserLookup confirms that the user behind a token still exists.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func AuthMiddleware(jwtManager *auth.JWTManager, users UserLookup, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if token == "" {
			logger.Warn("Missing authorization token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization token required",
			})
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid token", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Tokens outlive deleted accounts; the tenant comes from the user row, not the claim.
		user, err := users.GetByID(c.Context(), userID)
		if err != nil {
			logger.Warn("Token for unknown user", zap.String("user_id", claims.UserID), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		c.Locals("userID", user.ID.String())
		c.Locals("companyID", user.CompanyID.String())
		c.Locals("username", user.Username)
		c.Locals("email", user.Email)

		return c.Next()
	}
}
