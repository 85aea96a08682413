package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/models"
	"legaldesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPageSize = 100

type SigningHandler struct {
	signingService *service.SigningService
	maxUpload      int64
	linkTTL        time.Duration
	logger         *zap.Logger
}

func NewSigningHandler(signingService *service.SigningService, maxUpload int64, linkTTL time.Duration, logger *zap.Logger) *SigningHandler {
	return &SigningHandler{
		signingService: signingService,
		maxUpload:      maxUpload,
		linkTTL:        linkTTL,
		logger:         logger,
	}
}

func (h *SigningHandler) response(req *models.SigningRequest) dto.SigningRequestResponse {
	return dto.SigningRequestFromModel(req, h.signingService.Now(), h.signingService.SigningLink(req))
}

// CreateSigningRequest godoc
// @Summary Create a signing request
// @Description Upload a document and create a draft signing request
// @Tags signing
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document to sign"
// @Param recipient_phone formData string true "Recipient phone"
// @Param recipient_name formData string false "Recipient name"
// @Param recipient_email formData string false "Recipient email"
// @Param expiry_days formData int false "Days until the link expires" default(30)
// @Param fields formData string false "JSON array of signing fields"
// @Security Bearer
// @Success 201 {object} dto.SigningRequestResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/signing-requests [post]
func (h *SigningHandler) Create(c *fiber.Ctx) error {
	userID, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "File is required")
	}
	data, err := readFormFile(file, h.maxUpload)
	if err != nil {
		return badRequest(c, "Failed to read file: "+err.Error())
	}

	var fields []dto.SigningFieldDTO
	if raw := strings.TrimSpace(c.FormValue("fields")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return badRequest(c, "Fields must be a JSON array")
		}
	}

	expiryDays := 0
	if raw := strings.TrimSpace(c.FormValue("expiry_days")); raw != "" {
		expiryDays, err = strconv.Atoi(raw)
		if err != nil || expiryDays <= 0 {
			return badRequest(c, "Expiry days must be a positive number")
		}
	}

	req, err := h.signingService.Create(c.Context(), service.CreateParams{
		CompanyID:      companyID,
		CreatedBy:      userID,
		FileName:       file.Filename,
		FileType:       file.Header.Get("Content-Type"),
		Data:           data,
		Fields:         dto.FieldsToModel(fields),
		RecipientName:  c.FormValue("recipient_name"),
		RecipientPhone: c.FormValue("recipient_phone"),
		RecipientEmail: c.FormValue("recipient_email"),
		ExpiryDays:     expiryDays,
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create signing request")
	}

	return c.Status(fiber.StatusCreated).JSON(h.response(req))
}

// ListSigningRequests godoc
// @Summary List signing requests
// @Description List the company's signing requests, newest first
// @Tags signing
// @Produce json
// @Param status query string false "Filter by effective status"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Security Bearer
// @Success 200 {array} dto.SigningRequestResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/signing-requests [get]
func (h *SigningHandler) List(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}

	var status *models.Status
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return badRequest(c, "Unknown status "+raw)
		}
		status = &st
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	reqs, err := h.signingService.List(c.Context(), companyID, status, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list signing requests")
	}

	out := make([]dto.SigningRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, h.response(r))
	}
	return c.JSON(out)
}

// GetSigningRequest godoc
// @Summary Get a signing request
// @Tags signing
// @Produce json
// @Param id path string true "Signing request ID"
// @Security Bearer
// @Success 200 {object} dto.SigningRequestResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/signing-requests/{id} [get]
func (h *SigningHandler) Get(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	req, err := h.signingService.Get(c.Context(), companyID, id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to load signing request")
	}
	return c.JSON(h.response(req))
}

// UpdateSigningRequest godoc
// @Summary Update a signing request
// @Description Change fields, recipient or expiry while the request is still open
// @Tags signing
// @Accept json
// @Produce json
// @Param id path string true "Signing request ID"
// @Param request body dto.UpdateSigningRequest true "Changes"
// @Security Bearer
// @Success 200 {object} dto.SigningRequestResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/signing-requests/{id} [patch]
func (h *SigningHandler) Update(c *fiber.Ctx) error {
	userID, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	var body dto.UpdateSigningRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	params := service.UpdateParams{
		RecipientName:  body.RecipientName,
		RecipientPhone: body.RecipientPhone,
		RecipientEmail: body.RecipientEmail,
		ExpiryDays:     body.ExpiryDays,
	}
	if body.Fields != nil {
		fields := dto.FieldsToModel(*body.Fields)
		params.Fields = &fields
	}

	req, err := h.signingService.Update(c.Context(), companyID, userID, id, params)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update signing request")
	}
	return c.JSON(h.response(req))
}

// DeleteSigningRequest godoc
// @Summary Delete a signing request
// @Description Only the creator can delete; documents are removed from storage first
// @Tags signing
// @Param id path string true "Signing request ID"
// @Security Bearer
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/signing-requests/{id} [delete]
func (h *SigningHandler) Delete(c *fiber.Ctx) error {
	userID, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	if err := h.signingService.Delete(c.Context(), companyID, id, userID); err != nil {
		return respondError(c, h.logger, err, "Failed to delete signing request")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendSigningRequest godoc
// @Summary Send or resend a signing request
// @Description Deliver the signing link to the recipient over WhatsApp
// @Tags signing
// @Accept json
// @Produce json
// @Param id path string true "Signing request ID"
// @Param request body dto.SendSigningRequest false "Delivery options"
// @Security Bearer
// @Success 200 {object} dto.SendSigningResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/signing-requests/{id}/send [post]
func (h *SigningHandler) Send(c *fiber.Ctx) error {
	userID, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	var body dto.SendSigningRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := h.signingService.Send(c.Context(), companyID, userID, id, service.SendOptions{
		AttachDocument: body.AttachDocument,
		Message:        body.Message,
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to send signing request")
	}

	return c.JSON(dto.SendSigningResponse{
		Request:   h.response(result.Request),
		MessageID: result.Delivery.MessageID,
		ChatID:    result.Delivery.ChatID,
	})
}

// CancelSigningRequest godoc
// @Summary Cancel a signing request
// @Tags signing
// @Produce json
// @Param id path string true "Signing request ID"
// @Security Bearer
// @Success 200 {object} dto.SigningRequestResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/signing-requests/{id}/cancel [post]
func (h *SigningHandler) Cancel(c *fiber.Ctx) error {
	userID, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	req, err := h.signingService.Cancel(c.Context(), companyID, userID, id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to cancel signing request")
	}
	return c.JSON(h.response(req))
}

// DownloadSigningDocument godoc
// @Summary Get a download link
// @Description Short-lived URL for the original or the signed document
// @Tags signing
// @Produce json
// @Param id path string true "Signing request ID"
// @Param variant query string false "original or signed" default(original)
// @Security Bearer
// @Success 200 {object} dto.DownloadURLResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/signing-requests/{id}/download [get]
func (h *SigningHandler) Download(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	variant := service.DownloadVariant(c.Query("variant", string(service.DownloadOriginal)))
	url, err := h.signingService.DownloadURL(c.Context(), companyID, id, variant)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create download link")
	}
	return c.JSON(dto.DownloadURLResponse{
		URL:       url,
		ExpiresIn: int64(h.linkTTL.Seconds()),
	})
}

// SigningAuditTrail godoc
// @Summary Audit trail of a signing request
// @Tags signing
// @Produce json
// @Param id path string true "Signing request ID"
// @Security Bearer
// @Success 200 {array} dto.AuditEntryResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/signing-requests/{id}/audit [get]
func (h *SigningHandler) Audit(c *fiber.Ctx) error {
	_, companyID, err := identity(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid signing request ID")
	}

	entries, err := h.signingService.AuditTrail(c.Context(), companyID, id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to load audit trail")
	}

	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AuditEntryFromModel(e))
	}
	return c.JSON(out)
}
