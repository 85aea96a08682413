package handlers

import (
	"crypto/subtle"
	"strings"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WhatsAppHandler struct {
	deliveryService *service.DeliveryService
	intakeService   *service.IntakeService
	webhookToken    string
	logger          *zap.Logger
}

func NewWhatsAppHandler(deliveryService *service.DeliveryService, intakeService *service.IntakeService, webhookToken string, logger *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		deliveryService: deliveryService,
		intakeService:   intakeService,
		webhookToken:    webhookToken,
		logger:          logger,
	}
}

// SendWhatsApp godoc
// @Summary Send a WhatsApp message
// @Description Send a text, or a file with an optional caption, to a phone number
// @Tags whatsapp
// @Accept json
// @Produce json
// @Param request body dto.WhatsAppSendRequest true "Message"
// @Security Bearer
// @Success 200 {object} dto.WhatsAppSendResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/whatsapp/send [post]
func (h *WhatsAppHandler) Send(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.WhatsAppSendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return badRequest(c, "Phone is required")
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.FileURL) == "" {
		return badRequest(c, "Message or file is required")
	}

	result, err := h.deliveryService.Send(c.Context(), service.Delivery{
		CompanyID: companyID,
		Phone:     req.Phone,
		Message:   req.Message,
		FileURL:   req.FileURL,
		FileName:  req.FileName,
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to send WhatsApp message")
	}

	return c.JSON(dto.WhatsAppSendResponse{
		Success:   true,
		MessageID: result.MessageID,
		ChatID:    result.ChatID,
	})
}

// WhatsAppWebhook godoc
// @Summary Provider notifications
// @Description Receives Green API push notifications; incoming files are stored
// @Tags whatsapp
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer webhook token"
// @Param request body dto.WebhookEvent true "Notification"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /webhooks/whatsapp [post]
func (h *WhatsAppHandler) Webhook(c *fiber.Ctx) error {
	if !h.authorizedWebhook(c.Get(fiber.HeaderAuthorization)) {
		h.logger.Warn("Rejected webhook call", zap.String("ip", c.IP()))
		return unauthorized(c)
	}

	var event dto.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if event.TypeWebhook == "" {
		return badRequest(c, "typeWebhook is required")
	}

	msg, err := h.intakeService.HandleIncoming(c.Context(), &event)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to process notification")
	}
	if msg == nil {
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	return c.JSON(fiber.Map{"status": "stored", "id": msg.ID.String()})
}

func (h *WhatsAppHandler) authorizedWebhook(header string) bool {
	if h.webhookToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.webhookToken)) == 1
}

// ListIntake godoc
// @Summary Documents received over WhatsApp
// @Tags whatsapp
// @Produce json
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Security Bearer
// @Success 200 {array} dto.IntakeMessageResponse
// @Failure 401 {object} map[string]string
// @Router /api/v1/whatsapp/intake [get]
func (h *WhatsAppHandler) ListIntake(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	msgs, err := h.intakeService.List(c.Context(), companyID, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list intake")
	}

	out := make([]dto.IntakeMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.IntakeMessageResponse{
			ID:           m.ID.String(),
			SenderChatID: m.SenderChatID,
			SenderName:   m.SenderName,
			FileName:     m.FileName,
			Caption:      m.Caption,
			HasFile:      m.FileURL != nil,
			ReceivedAt:   m.ReceivedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}
