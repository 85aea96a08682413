package handlers

import (
	"legaldesk/internal/dto"
	"legaldesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TemplateHandler struct {
	templateService *service.TemplateService
	maxUpload       int64
	logger          *zap.Logger
}

func NewTemplateHandler(templateService *service.TemplateService, maxUpload int64, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		maxUpload:       maxUpload,
		logger:          logger,
	}
}

// ParseTemplate godoc
// @Summary Parse a Word template
// @Description Convert a .docx file to markup and list its placeholder variables
// @Tags templates
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Template (.docx)"
// @Security Bearer
// @Success 200 {object} dto.ParseTemplateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/templates/parse [post]
func (h *TemplateHandler) Parse(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "File is required")
	}
	data, err := readFormFile(file, h.maxUpload)
	if err != nil {
		return badRequest(c, "Failed to read file: "+err.Error())
	}

	resp, err := h.templateService.Parse(file.Filename, data)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to parse template")
	}
	return c.JSON(resp)
}

// PreviewTemplate godoc
// @Summary Fill a template
// @Description Substitute values and return sanitized markup
// @Tags templates
// @Accept json
// @Produce json
// @Param request body dto.FillTemplateRequest true "Markup and values"
// @Security Bearer
// @Success 200 {object} dto.FillTemplateResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/templates/preview [post]
func (h *TemplateHandler) Preview(c *fiber.Ctx) error {
	var req dto.FillTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Markup == "" {
		return badRequest(c, "Markup is required")
	}

	markup, unfilled := h.templateService.Fill(req.Markup, req.Values)
	return c.JSON(dto.FillTemplateResponse{Markup: markup, Unfilled: unfilled})
}

// GenerateTemplate godoc
// @Summary Render a filled template
// @Description Fill the template and render all pages into one PNG image
// @Tags templates
// @Accept json
// @Produce png
// @Param request body dto.FillTemplateRequest true "Markup and values"
// @Security Bearer
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Router /api/v1/templates/generate [post]
func (h *TemplateHandler) Generate(c *fiber.Ctx) error {
	var req dto.FillTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	img, err := h.templateService.Generate(c.Context(), req.Markup, req.Values, req.Required)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to generate document")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="document.png"`)
	return c.Send(img)
}
