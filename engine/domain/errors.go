package domain

import (
	"errors"
	"fmt"
)

// Lookup failures. None of these are fatal; callers render a placeholder.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownTopic    = errors.New("unknown topic")
	ErrUnknownArticle  = errors.New("unknown article")
)

// Sentinel errors for validation failures.
var (
	ErrEmptyField     = errors.New("field is empty")
	ErrDuplicate      = errors.New("duplicate value")
	ErrOutOfRange     = errors.New("value out of range")
	ErrNotURLSafe     = errors.New("value is not url-safe")
	ErrQueryTooLong   = errors.New("query too long")
	ErrQueryInjection = errors.New("query contains suspicious content")
	ErrInvalidArticle = errors.New("invalid article")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
