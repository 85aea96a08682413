package dto

type TemplateVariable struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type ParseTemplateResponse struct {
	FileName  string             `json:"file_name"`
	Markup    string             `json:"markup"`
	Variables []TemplateVariable `json:"variables"`
}

type FillTemplateRequest struct {
	Markup string            `json:"markup" validate:"required"`
	Values map[string]string `json:"values"`
	// Required lists variables that must have a value before an image is generated.
	Required []string `json:"required,omitempty"`
}

type FillTemplateResponse struct {
	Markup   string   `json:"markup"`
	Unfilled []string `json:"unfilled"`
}
