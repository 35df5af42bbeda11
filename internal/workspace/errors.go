package workspace

import "errors"

// Errors returned by workspace operations.
var (
	// ErrDocumentAlreadyOpen is returned when opening a URI twice.
	ErrDocumentAlreadyOpen = errors.New("document already open")

	// ErrDocumentNotOpen is returned for operations on an unknown URI.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrClosed is returned after the workspace or document was closed.
	ErrClosed = errors.New("workspace closed")
)
