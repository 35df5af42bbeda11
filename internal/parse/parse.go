// Package parse defines the boundary between the background scheduler and
// a concrete parser, and the immutable result the scheduler publishes.
package parse

import (
	"context"
	"fmt"

	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/text"
)

// Token is a classified token with an absolute byte offset.
type Token struct {
	Kind   lexer.Kind
	Start  int
	Length int
	Text   string
}

// End returns the offset just past the token.
func (t Token) End() int {
	return t.Start + t.Length
}

// Error is a syntax error reported as data. It is not a Go error: a parse
// with syntax errors still succeeds.
type Error struct {
	Range   text.Range
	Offset  int
	Length  int
	Message string
}

// String returns "line:col: message" with 1-based positions.
func (e Error) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Range.Start.Line+1, e.Range.Start.Column+1, e.Message)
}

// Tree is an opaque parse tree handle. Parsers document the concrete type
// they return; StructureParser returns *Node.
type Tree any

// Node is a delimited region of the document.
type Node struct {
	Kind     string
	Start    int
	End      int
	Children []*Node
}

// Walk calls fn for n and every descendant, depth first. Returning false
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Output is what a Parser produces for one snapshot.
type Output struct {
	Tokens []Token
	Errors []Error
	Tree   Tree
}

// Parser parses one immutable snapshot. Implementations should return
// ctx.Err() promptly once ctx is cancelled. A non-nil error means the
// parser itself failed; syntax errors belong in Output.Errors.
type Parser interface {
	Parse(ctx context.Context, snap *text.Snapshot) (Output, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, snap *text.Snapshot) (Output, error)

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, snap *text.Snapshot) (Output, error) {
	return f(ctx, snap)
}
