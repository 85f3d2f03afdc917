package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	ErrInvalidRecord   = errors.New("invalid vehicle record")
	ErrNegativePrice   = errors.New("price is negative")
	ErrNegativeMileage = errors.New("mileage is negative")
	ErrMissingMake     = errors.New("make is empty")
	ErrMissingModel    = errors.New("model is empty")
	ErrInvalidStockID  = errors.New("stock id must be positive")
)

// ValidationError wraps a sentinel with field context.
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
