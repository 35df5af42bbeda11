package text

import "fmt"

// Edit replaces a range with new text.
type Edit struct {
	Range   Range
	NewText string
}

// NewEdit creates a new Edit.
func NewEdit(r Range, newText string) Edit {
	return Edit{Range: r, NewText: newText}
}

// NewInsert creates an Edit that inserts text at a position.
func NewInsert(at Point, text string) Edit {
	return Edit{Range: Range{Start: at, End: at}, NewText: text}
}

// NewDelete creates an Edit that deletes a range.
func NewDelete(r Range) Edit {
	return Edit{Range: r}
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	if e.Range.IsEmpty() {
		return fmt.Sprintf("Insert(%s, %q)", e.Range.Start, e.NewText)
	}
	if e.NewText == "" {
		return fmt.Sprintf("Delete%s", e.Range)
	}
	return fmt.Sprintf("Replace%s with %q", e.Range, e.NewText)
}

// IsNoOp returns true if this edit does nothing.
func (e Edit) IsNoOp() bool {
	return e.Range.IsEmpty() && e.NewText == ""
}

// Change describes the effect of one edit on the line structure:
// lines [OldStartLine, OldEndLine] of the previous snapshot were replaced by
// lines [OldStartLine, NewEndLine] of the snapshot with the given Version.
type Change struct {
	OldStartLine int
	OldEndLine   int
	NewEndLine   int
	Version      uint64
}

// LineDelta returns how many lines the change added (negative if removed).
func (c Change) LineDelta() int {
	return c.NewEndLine - c.OldEndLine
}

// String returns a human-readable representation of the change.
func (c Change) String() string {
	return fmt.Sprintf("v%d lines %d..%d -> %d..%d", c.Version, c.OldStartLine, c.OldEndLine, c.OldStartLine, c.NewEndLine)
}
