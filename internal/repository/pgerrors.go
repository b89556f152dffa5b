package repository

import (
	"errors"
	"fmt"

	apperrors "landreg-workers/internal/common/errors"

	"github.com/lib/pq"
)

// Classify maps a storage error onto the pipeline's error taxonomy. Errors
// that are already classified pass through untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPQ(op, pqErr)
	}

	// connection resets, timeouts and cancelled contexts all land here
	return apperrors.NewTransientError(op, err)
}

func classifyPQ(op string, pqErr *pq.Error) error {
	detail := fmt.Sprintf("%s: %s", op, pqErr.Message)
	if pqErr.Constraint != "" {
		detail = fmt.Sprintf("%s (constraint %s)", detail, pqErr.Constraint)
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		return apperrors.NewDuplicateEntityError(detail)
	case "23514", "23502", "23503": // check, not null, foreign key
		return apperrors.NewIntegrityViolationError(detail)
	case "40001", "40P01", "55P03", "57014", "57P01", "57P02", "57P03":
		return apperrors.NewTransientError(op, pqErr)
	}

	switch pqErr.Code.Class() {
	case "08", "53": // connection exception, insufficient resources
		return apperrors.NewTransientError(op, pqErr)
	case "22": // data exception
		return apperrors.NewValidationError(detail)
	case "23":
		return apperrors.NewIntegrityViolationError(detail)
	}

	return apperrors.NewInternalError(fmt.Errorf("%s: %w", op, pqErr))
}
