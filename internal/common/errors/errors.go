// Package errors provides the error taxonomy shared by the staging pipeline,
// its HTTP surface and its BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeAlreadyProcessed   ErrorCode = "ALREADY_PROCESSED"
	ErrCodeAmbiguousMatch     ErrorCode = "AMBIGUOUS_MATCH"
	ErrCodeTransientStorage   ErrorCode = "TRANSIENT_STORAGE_ERROR"
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"
	ErrCodeRecordNotFound     ErrorCode = "STAGING_RECORD_NOT_FOUND"
	ErrCodeEntityNotFound     ErrorCode = "PRODUCTION_ENTITY_NOT_FOUND"
	ErrCodeDuplicateEntity    ErrorCode = "DUPLICATE_ENTITY"
	ErrCodeDistrictForbidden  ErrorCode = "DISTRICT_FORBIDDEN"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
}

// Is matches any StandardError carrying the same code, so callers can test
// against the exported sentinels with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons. Never return these directly; use the
// constructors so the details and timestamp are populated.
var (
	ErrValidation         = &StandardError{Code: ErrCodeValidationFailed}
	ErrAlreadyProcessed   = &StandardError{Code: ErrCodeAlreadyProcessed}
	ErrAmbiguousMatch     = &StandardError{Code: ErrCodeAmbiguousMatch}
	ErrTransient          = &StandardError{Code: ErrCodeTransientStorage}
	ErrIntegrity          = &StandardError{Code: ErrCodeIntegrityViolation}
	ErrRecordNotFound     = &StandardError{Code: ErrCodeRecordNotFound}
	ErrEntityNotFound     = &StandardError{Code: ErrCodeEntityNotFound}
	ErrDuplicateEntity    = &StandardError{Code: ErrCodeDuplicateEntity}
	ErrDistrictForbidden  = &StandardError{Code: ErrCodeDistrictForbidden}
	ErrNotificationFailed = &StandardError{Code: ErrCodeNotificationFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports malformed input. Never retryable.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

// NewAlreadyProcessedError reports a transition attempted on a record that
// already left PENDING. currentStatus is surfaced to the moderator.
func NewAlreadyProcessedError(stagingID, currentStatus string) *StandardError {
	e := newError(ErrCodeAlreadyProcessed,
		"Staging record was already processed",
		fmt.Sprintf("stagingId: %s, status: %s", stagingID, currentStatus),
		false)
	return e.WithMetadata("currentStatus", currentStatus)
}

// NewAmbiguousMatchError reports more than one production candidate.
func NewAmbiguousMatchError(details string, candidates []int64) *StandardError {
	e := newError(ErrCodeAmbiguousMatch, "Multiple production candidates match; choose one explicitly", details, false)
	return e.WithMetadata("candidates", candidates)
}

// NewTransientError wraps a retryable storage or transport failure.
func NewTransientError(operation string, err error) *StandardError {
	return newError(ErrCodeTransientStorage,
		"Storage temporarily unavailable",
		fmt.Sprintf("operation: %s, error: %v", operation, err),
		true)
}

// NewIntegrityViolationError reports a broken storage invariant.
func NewIntegrityViolationError(details string) *StandardError {
	return newError(ErrCodeIntegrityViolation, "Storage integrity violation", details, false)
}

// NewRecordNotFoundError reports a missing staging record.
func NewRecordNotFoundError(entityType, stagingID string) *StandardError {
	return newError(ErrCodeRecordNotFound,
		"Staging record not found",
		fmt.Sprintf("entityType: %s, stagingId: %s", entityType, stagingID),
		false)
}

// NewEntityNotFoundError reports a missing production entity, typically a merge target.
func NewEntityNotFoundError(entityType string, id int64) *StandardError {
	return newError(ErrCodeEntityNotFound,
		"Production entity not found",
		fmt.Sprintf("entityType: %s, id: %d", entityType, id),
		false)
}

// NewDuplicateEntityError reports that a create would duplicate an existing entity.
func NewDuplicateEntityError(details string) *StandardError {
	return newError(ErrCodeDuplicateEntity, "Production entity already exists", details, false)
}

// NewDistrictForbiddenError reports an actor acting outside their districts.
func NewDistrictForbiddenError(actor string, district int) *StandardError {
	return newError(ErrCodeDistrictForbidden,
		"Actor is not authorized for this district",
		fmt.Sprintf("actor: %s, district: %d", actor, district),
		false)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(eventType string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed,
		"Notification delivery failed",
		fmt.Sprintf("event: %s, error: %v", eventType, err),
		true)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:   "STAGING_VALIDATION_FAILED",
	ErrCodeAlreadyProcessed:   "STAGING_ALREADY_PROCESSED",
	ErrCodeAmbiguousMatch:     "STAGING_AMBIGUOUS_MATCH",
	ErrCodeTransientStorage:   "STAGING_STORAGE_UNAVAILABLE",
	ErrCodeIntegrityViolation: "STAGING_INTEGRITY_VIOLATION",
	ErrCodeRecordNotFound:     "STAGING_RECORD_NOT_FOUND",
	ErrCodeEntityNotFound:     "PRODUCTION_ENTITY_NOT_FOUND",
	ErrCodeDuplicateEntity:    "PRODUCTION_DUPLICATE_ENTITY",
	ErrCodeDistrictForbidden:  "DISTRICT_FORBIDDEN",
	ErrCodeNotificationFailed: "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransientStorage:
		return 3
	case ErrCodeNotificationFailed:
		return 1
	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HTTPStatus maps err to the status code the HTTP surface answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeRecordNotFound, ErrCodeEntityNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyProcessed, ErrCodeDuplicateEntity, ErrCodeAmbiguousMatch:
		return http.StatusConflict
	case ErrCodeDistrictForbidden:
		return http.StatusForbidden
	case ErrCodeTransientStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "INTEGRITY"):
		return "DATABASE"
	case strings.Contains(codeStr, "PROCESSED") || strings.Contains(codeStr, "DUPLICATE") || strings.Contains(codeStr, "AMBIGUOUS"):
		return "CONFLICT"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "DISTRICT"):
		return "AUTHORIZATION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
