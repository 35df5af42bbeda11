package parse

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result is a published parse result. It is immutable; accessors return
// copies of its slices.
type Result struct {
	version   uint64
	requestID uuid.UUID
	tokens    []Token
	errors    []Error
	tree      Tree
	duration  time.Duration
}

// NewResult stamps out with the version it was computed from.
func NewResult(version uint64, requestID uuid.UUID, out Output, d time.Duration) *Result {
	r := &Result{
		version:   version,
		requestID: requestID,
		tree:      out.Tree,
		duration:  d,
	}
	r.tokens = append([]Token(nil), out.Tokens...)
	r.errors = append([]Error(nil), out.Errors...)
	return r
}

// Version returns the snapshot version the result was computed from.
func (r *Result) Version() uint64 { return r.version }

// RequestID returns the ID of the request that produced the result.
func (r *Result) RequestID() uuid.UUID { return r.requestID }

// Tokens returns a copy of the tokens.
func (r *Result) Tokens() []Token { return append([]Token(nil), r.tokens...) }

// Errors returns a copy of the syntax errors.
func (r *Result) Errors() []Error { return append([]Error(nil), r.errors...) }

// ErrorCount returns the number of syntax errors.
func (r *Result) ErrorCount() int { return len(r.errors) }

// Tree returns the parse tree.
func (r *Result) Tree() Tree { return r.tree }

// Duration returns how long the parse took.
func (r *Result) Duration() time.Duration { return r.duration }

// Failure reports that a parse request failed without producing a result.
type Failure struct {
	Version   uint64
	RequestID uuid.UUID
	Err       error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("parse of version %d failed: %v", f.Version, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}
