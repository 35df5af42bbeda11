package lexer

import "errors"

// Errors returned while constructing lexers.
var (
	// ErrNoScanFunction is returned when a grammar script does not define scan.
	ErrNoScanFunction = errors.New("grammar script does not define a scan function")

	// ErrScriptClosed is returned when scanning with a closed script lexer.
	ErrScriptClosed = errors.New("script lexer is closed")
)
