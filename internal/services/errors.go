package services

import (
	"errors"
	"fmt"

	apperrors "github.com/brightclass/cbt-service/internal/errors"
)

// ===== DOMAIN ERRORS =====

var (
	// Lookup failures
	ErrNotFound        = errors.New("resource not found")
	ErrExamNotFound    = errors.New("exam not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrResultNotFound  = errors.New("term result not found")

	// State-machine violations (client retried or raced)
	ErrSessionAlreadyActive = errors.New("an active session already exists for this exam")
	ErrAlreadySubmitted     = errors.New("session already submitted")
	ErrAlreadyPublished     = errors.New("term result already published")

	// Temporal violations
	ErrSessionNotActive = errors.New("session is not active")
	ErrDeadlineExceeded = errors.New("submission deadline exceeded")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")

	// Data validity
	ErrInvalidMarks = errors.New("marks must be non-negative and not exceed max marks")
	ErrNoSubjects   = errors.New("no grade records to aggregate")

	// Write-after-seal guard
	ErrResultPublished = errors.New("grade belongs to a published term result")

	// Infrastructure. Kept distinct from domain errors: callers must not
	// mistake an unreachable store for a state-machine violation.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrValidationFailed = errors.New("validation failed")
)

// ===== SHARED VALIDATION TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// ===== CLASSIFIERS =====

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrResultNotFound)
}

// IsConflict reports whether err is a state-machine or temporal violation
// that a retrying client can observe.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionAlreadyActive) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrAlreadyPublished) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrDeadlineExceeded) ||
		errors.Is(err, ErrResultPublished)
}

// IsValidation reports whether err is a data-validity failure.
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidMarks) ||
		errors.Is(err, ErrNoSubjects) ||
		errors.Is(err, ErrUnknownQuestion) {
		return true
	}
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// IsStorage reports whether err is an infrastructure failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// storageErr wraps a repository failure so callers can branch on
// ErrStorageUnavailable while keeping the cause in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
