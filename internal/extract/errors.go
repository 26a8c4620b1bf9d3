package extract

import (
	"errors"
	"fmt"
)

// Field extraction errors
var (
	// ErrArity is returned when a cascade stage produced a different number of fields than
	// the template expects. It usually means the OCR text is incomplete, so callers may
	// retry with a different crop.
	ErrArity = errors.New("unexpected number of extracted fields")

	// ErrValidation is returned when extracted content is present but malformed, for
	// example a bank account of the wrong length. Retrying the same page will not help.
	ErrValidation = errors.New("extracted field failed validation")

	// ErrNoMatch is reported for a single pattern that found nothing. It is logged and the
	// pattern skipped; it never stops a cascade.
	ErrNoMatch = errors.New("pattern did not match")
)

// ValidationError represents a field whose content is malformed.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ArityError reports a stage that produced the wrong number of fields.
type ArityError struct {
	// Stage is the cascade name (e.g., "payer", "recipient").
	Stage string

	Want int
	Got  int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("extract: %s stage: %v: want %d, got %d", e.Stage, ErrArity, e.Want, e.Got)
}

// Unwrap returns ErrArity.
func (e *ArityError) Unwrap() error {
	return ErrArity
}
