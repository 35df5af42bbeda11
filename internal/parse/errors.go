package parse

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dshills/lexwork/internal/text"
)

// InternalError is a panic recovered from a parser.
type InternalError struct {
	Value any
	Stack []byte
}

// Error implements error.
func (e *InternalError) Error() string {
	return fmt.Sprintf("parser panic: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *InternalError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Run calls p.Parse and converts a panic into an *InternalError.
func Run(ctx context.Context, p Parser, snap *text.Snapshot) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{}
			err = &InternalError{Value: r, Stack: debug.Stack()}
		}
	}()
	return p.Parse(ctx, snap)
}
