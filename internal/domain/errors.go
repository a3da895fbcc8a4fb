package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidGrade is returned when a rating grade is outside MinGrade..MaxGrade.
	ErrInvalidGrade = fmt.Errorf("%w: grade must be between %d and %d", ErrValidation, MinGrade, MaxGrade)

	// ErrDuplicateRating is returned when a user rates the same book twice.
	ErrDuplicateRating = errors.New("book already rated by this user")

	// ErrNotOwner is returned when a user tries to modify a book they did not create.
	ErrNotOwner = errors.New("book is owned by another user")
)

// ValidationError describes a single invalid field. It wraps a sentinel so
// callers can match it with errors.Is(err, ErrValidation).
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError. A nil err defaults to ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}
