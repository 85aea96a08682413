package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"legaldesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	return localUUID(c, "userID")
}

func getCompanyID(c *fiber.Ctx) (uuid.UUID, error) {
	return localUUID(c, "companyID")
}

func localUUID(c *fiber.Ctx, key string) (uuid.UUID, error) {
	raw, ok := c.Locals(key).(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// identity returns the caller's user and company.
func identity(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := getUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	companyID, err := getCompanyID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, companyID, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// respondError maps service errors to a status code and a message that is safe to show.
// Storage, database and unknown errors are logged and replaced by fallback.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error, fallback string) error {
	status := fiber.StatusInternalServerError
	msg := fallback

	var deliveryErr *service.DeliveryError
	var transitionErr *service.TransitionError
	switch {
	case errors.As(err, &deliveryErr):
		msg = deliveryErr.Message
		switch deliveryErr.Kind {
		case service.FailureCredentialsMissing:
			status = fiber.StatusInternalServerError
		case service.FailureInvalidRequest:
			status = fiber.StatusBadRequest
		default:
			status = fiber.StatusBadGateway
		}
	case errors.As(err, &transitionErr):
		status, msg = fiber.StatusConflict, transitionErr.Error()
	case errors.Is(err, service.ErrConfiguration):
		msg = "Service is not configured: " + err.Error()
	case errors.Is(err, service.ErrUserExists):
		status, msg = fiber.StatusConflict, "User already exists"
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserNotFound):
		status, msg = fiber.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status, msg = fiber.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrValidation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrExpired), errors.Is(err, service.ErrCancelled):
		status, msg = fiber.StatusGone, err.Error()
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrConflict):
		status, msg = fiber.StatusConflict, err.Error()
	case errors.Is(err, service.ErrProvider):
		status, msg = fiber.StatusBadGateway, "Messaging provider error"
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
	} else {
		logger.Debug(fallback, zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

func readFormFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && fh.Size > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if limit <= 0 {
		return io.ReadAll(src)
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}
