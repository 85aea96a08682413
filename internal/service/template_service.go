package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"legaldesk/internal/docx"
	"legaldesk/internal/dto"

	"github.com/gen2brain/go-fitz"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// renderDPI is twice the 72 DPI page resolution.
const renderDPI = 144

var variablePattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// variableLabels maps placeholder names used in firm templates to display labels.
var variableLabels = map[string]string{
	"client_name":      "Client name",
	"client_id":        "Client ID number",
	"client_address":   "Client address",
	"client_phone":     "Client phone",
	"client_email":     "Client email",
	"lawyer_name":      "Lawyer name",
	"license_number":   "License number",
	"case_number":      "Case number",
	"court":            "Court",
	"date":             "Date",
	"amount":           "Amount",
	"fee":              "Fee",
	"address":          "Address",
	"id_number":        "ID number",
	"phone":            "Phone",
	"email":            "Email",
	"signature":        "Signature",
	"שם_הלקוח":         "שם הלקוח",
	"שם":               "שם",
	"שם_מלא":           "שם מלא",
	"תעודת_זהות":       "תעודת זהות",
	"ת.ז":              "תעודת זהות",
	"כתובת":            "כתובת",
	"טלפון":            "טלפון",
	"תאריך":            "תאריך",
	"סכום":             "סכום",
	"שכר_טרחה":         "שכר טרחה",
	"מספר_תיק":         "מספר תיק",
	"בית_משפט":         "בית משפט",
	"שם_עורך_הדין":     "שם עורך הדין",
	"מספר_רישיון":      "מספר רישיון",
	"חתימה":            "חתימה",
	"דואר_אלקטרוני":    "דואר אלקטרוני",
	"כתובת_דוא\"ל":     "דואר אלקטרוני",
	"תאריך_חתימה":      "תאריך חתימה",
	"signature_date":   "Signature date",
}

// TemplateService fills {{variable}} placeholders in HTML templates and renders
// the result to an image.
type TemplateService struct {
	policy *bluemonday.Policy
	logger *zap.Logger
}

func NewTemplateService(logger *zap.Logger) *TemplateService {
	return &TemplateService{
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
}

// Parse converts an uploaded .docx to markup and lists its placeholders.
func (s *TemplateService) Parse(fileName string, data []byte) (*dto.ParseTemplateResponse, error) {
	if len(data) == 0 {
		return nil, validationError("template file is required")
	}
	markup, err := docx.FromBytes(data)
	if err != nil {
		return nil, validationError("could not read %s: %v", fileName, err)
	}
	markup = s.policy.Sanitize(markup)

	names := ExtractVariables(markup)
	vars := make([]dto.TemplateVariable, 0, len(names))
	for _, name := range names {
		vars = append(vars, dto.TemplateVariable{Name: name, Label: VariableLabel(name)})
	}

	s.logger.Info("Template parsed",
		zap.String("file", fileName),
		zap.Int("variables", len(vars)),
	)
	return &dto.ParseTemplateResponse{FileName: fileName, Markup: markup, Variables: vars}, nil
}

// ExtractVariables returns the distinct placeholder names in order of first appearance.
func ExtractVariables(markup string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(markup, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// VariableLabel returns the known label for name, or name made readable:
// "clientName" and "client_name" both become "Client name".
func VariableLabel(name string) string {
	if label, ok := variableLabels[name]; ok {
		return label
	}
	if label, ok := variableLabels[strings.ToLower(name)]; ok {
		return label
	}
	return humanize(name)
}

func humanize(name string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, unicode.ToLower(r))
		default:
			cur = append(cur, unicode.ToLower(r))
		}
	}
	flush()
	if len(words) == 0 {
		return name
	}
	out := []rune(strings.Join(words, " "))
	out[0] = unicode.ToUpper(out[0])
	return string(out)
}

// Fill substitutes escaped values for their placeholders in a single pass, so a
// value that itself looks like a placeholder is never expanded. Variables with
// empty values keep their placeholder and are returned as unfilled. The result is
// sanitized.
func (s *TemplateService) Fill(markup string, values map[string]string) (string, []string) {
	unfilled := []string{}
	seen := make(map[string]struct{})
	filled := variablePattern.ReplaceAllStringFunc(markup, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if value := values[name]; strings.TrimSpace(value) != "" {
			return html.EscapeString(value)
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			unfilled = append(unfilled, name)
		}
		return match
	})
	return s.policy.Sanitize(filled), unfilled
}

// MissingRequired lists the required variables of markup that have no value.
// A nil required list means every variable in the markup is required.
func MissingRequired(markup string, values map[string]string, required []string) []string {
	present := ExtractVariables(markup)
	if len(present) == 0 {
		return nil
	}
	if required == nil {
		required = present
	}
	inMarkup := make(map[string]struct{}, len(present))
	for _, name := range present {
		inMarkup[name] = struct{}{}
	}

	var missing []string
	for _, name := range required {
		if _, ok := inMarkup[name]; !ok {
			continue
		}
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Generate fills the template and renders every page into one PNG, pages stacked
// top to bottom.
func (s *TemplateService) Generate(ctx context.Context, markup string, values map[string]string, required []string) ([]byte, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, validationError("template markup is required")
	}
	if missing := MissingRequired(markup, values, required); len(missing) > 0 {
		return nil, validationError("missing values for: %s", strings.Join(missing, ", "))
	}

	filled, _ := s.Fill(markup, values)

	tmp, err := os.CreateTemp("", "template-*.xhtml")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(xhtmlDocument(filled)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	doc, err := fitz.New(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered template: %w", err)
	}
	defer doc.Close()

	pages := make([]*image.RGBA, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, renderDPI)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("rendered template has no pages")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, stackPages(pages)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	s.logger.Info("Template rendered",
		zap.Int("pages", len(pages)),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

func stackPages(pages []*image.RGBA) *image.RGBA {
	width, height := 0, 0
	for _, p := range pages {
		b := p.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := 0
	for _, p := range pages {
		b := p.Bounds()
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Over)
		y += b.Dy()
	}
	return out
}

func xhtmlDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<html xmlns="http://www.w3.org/1999/xhtml"><head><meta charset="utf-8"/>` +
		`<style>body{font-family:sans-serif;font-size:12pt;margin:2cm;}` +
		`table{border-collapse:collapse;}td{border:1px solid #999;padding:4px;}</style>` +
		`</head><body>` + body + `</body></html>`
}
