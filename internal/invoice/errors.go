package invoice

import (
	"errors"
	"fmt"
)

// Parser output errors
var (
	// ErrEmptyInvoice is returned when the parser delivered no line items.
	ErrEmptyInvoice = errors.New("invoice has no line items")

	// ErrDuplicateIndex is returned when two line items share the same index.
	ErrDuplicateIndex = errors.New("duplicate line item index")

	// ErrInvalidLineItem is returned when a line item fails boundary validation.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrInvalidHeader is returned when the invoice header fails boundary validation.
	ErrInvalidHeader = errors.New("invalid invoice header")

	// ErrUnsupportedFormat is returned when a parser output file is neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported invoice file format")
)

// ValidationError represents errors in parser output validation.
type ValidationError struct {
	Index   int // line item index, -1 for header fields
	Field   string
	Value   interface{}
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validation error for header field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for line %d field '%s': %s (value: %v)", e.Index, e.Field, e.Message, e.Value)
}

// Unwrap returns the error category.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for a line item field.
func NewValidationError(index int, field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Index:   index,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     ErrInvalidLineItem,
	}
}

// NewHeaderValidationError creates a ValidationError for a header field.
func NewHeaderValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Index:   -1,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     ErrInvalidHeader,
	}
}
