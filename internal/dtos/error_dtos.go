package dtos

// ValidationErrorDetail provides a structured error for a single field validation failure.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
