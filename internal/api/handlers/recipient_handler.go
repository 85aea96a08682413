package handlers

import (
	"encoding/json"
	"strings"

	"legaldesk/internal/dto"
	"legaldesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RecipientHandler serves the signing page. The access token in the path is the
// only credential.
type RecipientHandler struct {
	signingService *service.SigningService
	maxUpload      int64
	logger         *zap.Logger
}

func NewRecipientHandler(signingService *service.SigningService, maxUpload int64, logger *zap.Logger) *RecipientHandler {
	return &RecipientHandler{
		signingService: signingService,
		maxUpload:      maxUpload,
		logger:         logger,
	}
}

// OpenSigningRequest godoc
// @Summary Open a signing link
// @Description Returns the document and fields for the token holder and marks the request opened
// @Tags recipient
// @Produce json
// @Param token path string true "Access token"
// @Success 200 {object} dto.RecipientView
// @Failure 404 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /sign/{token} [get]
func (h *RecipientHandler) Open(c *fiber.Ctx) error {
	view, err := h.signingService.Open(c.Context(), c.Params("token"))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to open signing request")
	}
	return c.JSON(view)
}

// CompleteSigningRequest godoc
// @Summary Submit a signature
// @Description Upload the signed document together with the field values
// @Tags recipient
// @Accept multipart/form-data
// @Produce json
// @Param token path string true "Access token"
// @Param file formData file true "Signed document"
// @Param values formData string true "JSON object of field id to value"
// @Success 200 {object} dto.CompleteSigningResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /sign/{token} [post]
func (h *RecipientHandler) Complete(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Signed file is required")
	}
	data, err := readFormFile(file, h.maxUpload)
	if err != nil {
		return badRequest(c, "Failed to read file: "+err.Error())
	}

	values := map[string]string{}
	if raw := strings.TrimSpace(c.FormValue("values")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return badRequest(c, "Values must be a JSON object")
		}
	}

	req, err := h.signingService.Complete(c.Context(), c.Params("token"), service.CompleteParams{
		Values:      values,
		Data:        data,
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to complete signing request")
	}

	resp := dto.CompleteSigningResponse{Status: string(req.Status)}
	if req.SignedAt != nil {
		resp.SignedAt = *req.SignedAt
	}
	return c.JSON(resp)
}
