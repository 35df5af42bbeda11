package text

import "errors"

// Errors returned by buffer operations.
var (
	// ErrRangeOutOfBounds is returned when an edit refers to a position
	// outside the document.
	ErrRangeOutOfBounds = errors.New("range out of bounds")

	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid range")
)
