package text

import (
	"fmt"
	"unicode/utf8"
)

// Point is a line and byte-column position. Both are 0-indexed.
type Point struct {
	Line   int
	Column int
}

// String returns a human-readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d:%d)", p.Line, p.Column)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Point) Compare(other Point) int {
	switch {
	case p.Line < other.Line:
		return -1
	case p.Line > other.Line:
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	}
	return 0
}

// Before returns true if p comes before other.
func (p Point) Before(other Point) bool {
	return p.Compare(other) < 0
}

// Range is a span between two points. Start is inclusive, End exclusive.
type Range struct {
	Start Point
	End   Point
}

// NewRange creates a Range from two points.
func NewRange(start, end Point) Range {
	return Range{Start: start, End: end}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%s-%s)", r.Start, r.End)
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// IsValid returns true if Start <= End.
func (r Range) IsValid() bool {
	return r.Start.Compare(r.End) <= 0
}

// Contains returns true if p is within the range.
func (r Range) Contains(p Point) bool {
	return r.Start.Compare(p) <= 0 && p.Before(r.End)
}

// UTF16Column converts a byte column within line to UTF-16 code units.
func UTF16Column(line string, byteCol int) int {
	if byteCol > len(line) {
		byteCol = len(line)
	}
	col := 0
	for _, r := range line[:byteCol] {
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
	}
	return col
}

// ByteColumn converts a UTF-16 column within line to a byte column.
// Columns past the end of the line clamp to its length.
func ByteColumn(line string, utf16Col int) int {
	col := 0
	for i := 0; i < len(line); {
		if col >= utf16Col {
			return i
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
		i += size
	}
	return len(line)
}
