// Package validation validates loosely-typed documents against JSON schemas.
// Queue payloads cross a process boundary as JSON, so the worker re-validates
// them before dispatch instead of trusting the producer.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateDocument validates a document against a JSON schema expressed as a
// Go map.
func ValidateDocument(document map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	out := &ValidationResult{Valid: false}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return out, nil
}

// ErrorSummary renders validation errors as a single message for logs and
// structured error details.
func (r *ValidationResult) ErrorSummary() string {
	if r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
