package validation

import (
	"fmt"
	"strings"

	apperrors "landreg-workers/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error codes reported per field.
const (
	CodeRequired      = "REQUIRED_FIELD_MISSING"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeInvalidType   = "INVALID_TYPE"
	CodeOutOfRange    = "OUT_OF_RANGE"
	CodeUnknownField  = "UNKNOWN_FIELD"
	CodeSchema        = "SCHEMA_VIOLATION"
)

func NewResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

func (vr *ValidationResult) Add(field, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message, Code: code})
}

func (vr *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, e := range other.Errors {
		vr.Add(e.Field, e.Message, e.Code)
	}
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil for a valid result, else a VALIDATION_FAILED error listing
// every field problem.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	return apperrors.NewValidationError(strings.Join(vr.GetErrorMessages(), "; ")).
		WithMetadata("fieldErrors", vr.Errors)
}
