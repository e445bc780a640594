package submission

import (
	"errors"
	"fmt"
	"strings"

	"erptools/internal/hierarchy"
)

var (
	// ErrInvariantViolation means the depth-one rule was broken, which only
	// happens when the hierarchy resolver was bypassed. Submission must abort.
	ErrInvariantViolation = errors.New("line hierarchy invariant violated")

	// ErrUnresolvedReference means a mapping points at a line or catalog entry
	// that is not known.
	ErrUnresolvedReference = errors.New("unresolved mapping reference")

	// ErrIncompleteInput is returned when Assemble is called without a store, table or plan.
	ErrIncompleteInput = errors.New("incomplete submission input")
)

// InvariantError lists the mappings that break the depth-one rule.
type InvariantError struct {
	Violations []hierarchy.Violation
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%v: %s", ErrInvariantViolation, strings.Join(parts, "; "))
}

// Unwrap returns ErrInvariantViolation.
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// MissingReference is one mapping target that does not resolve.
type MissingReference struct {
	Index     int    `json:"index"`
	Reference string `json:"reference"` // "line:<n>" or "catalog:<id>"
}

// ReferenceError lists mappings whose targets do not resolve.
type ReferenceError struct {
	Missing []MissingReference
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = fmt.Sprintf("line %d -> %s", m.Index, m.Reference)
	}
	return fmt.Sprintf("%v: %s", ErrUnresolvedReference, strings.Join(parts, "; "))
}

// Unwrap returns ErrUnresolvedReference.
func (e *ReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}
