package mapping

import "errors"

var (
	// ErrInvalidMapping is returned when an action/target combination is not representable.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrUnknownIndex is returned when an operation names a line the table does not hold.
	ErrUnknownIndex = errors.New("unknown line index")
)
