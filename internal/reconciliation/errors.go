package reconciliation

import (
	"errors"
	"fmt"
)

// Session errors
var (
	// ErrConfirmationBlocked is returned by Confirm while Status reports issues.
	ErrConfirmationBlocked = errors.New("confirmation blocked")

	// ErrStaleTerm is reported when the selected payment term disappeared or
	// changed in a catalog refresh.
	ErrStaleTerm = errors.New("selected payment term is stale")

	// ErrUnknownOperation is returned by scripts naming an operation that does not exist.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidOperation is returned by scripts with missing or contradictory arguments.
	ErrInvalidOperation = errors.New("invalid operation arguments")
)

// SessionError wraps errors with the session operation that failed.
type SessionError struct {
	// Op is the operation that failed (e.g., "Reparent", "Confirm").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// SessionID identifies the reconciliation session.
	SessionID string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("reconciliation: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("reconciliation: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// Is implements error matching.
func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapSessionError wraps an error as a SessionError if it isn't already one.
func WrapSessionError(op, sessionID string, err error, details string) error {
	if err == nil {
		return nil
	}

	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return err
	}

	return &SessionError{Op: op, Err: err, Details: details, SessionID: sessionID}
}
