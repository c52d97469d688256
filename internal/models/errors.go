package models

import (
	"errors"
	"fmt"
)

// Error kinds returned by the domain services. Callers match them with
// errors.Is; services wrap them with context.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("slot already booked")
	ErrInvalidState     = errors.New("invalid state for operation")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicate        = errors.New("duplicate")
	ErrTooEarly         = errors.New("too early")
	ErrInvalidWinner    = errors.New("winner is not a team in this match")
	ErrDuplicatePlayer  = errors.New("player appears in more than one team")
	ErrNotPending       = errors.New("payment is not pending")
)

// ValidationError reports a single malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
