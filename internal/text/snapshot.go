package text

import "strings"

// Snapshot is a read-only view of a buffer at one version. It is safe for
// concurrent access and never changes.
type Snapshot struct {
	lines   []string
	version uint64
}

// NewSnapshot creates a snapshot of text at the given version.
func NewSnapshot(text string, version uint64) *Snapshot {
	return &Snapshot{lines: splitLines(text), version: version}
}

// Version returns the monotonic version of this snapshot.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// LineCount returns the number of lines. An empty document has one line.
func (s *Snapshot) LineCount() int {
	return len(s.lines)
}

// Line returns the text of a line without its newline.
// Out-of-range lines return "".
func (s *Snapshot) Line(i int) string {
	if i < 0 || i >= len(s.lines) {
		return ""
	}
	return s.lines[i]
}

// Lines returns a copy of all lines.
func (s *Snapshot) Lines() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Text returns the full content.
func (s *Snapshot) Text() string {
	return strings.Join(s.lines, "\n")
}

// Len returns the content length in bytes.
func (s *Snapshot) Len() int {
	n := len(s.lines) - 1
	for _, l := range s.lines {
		n += len(l)
	}
	return n
}

// LineStartOffset returns the byte offset of the start of a line.
func (s *Snapshot) LineStartOffset(line int) int {
	off := 0
	for i := 0; i < line && i < len(s.lines); i++ {
		off += len(s.lines[i]) + 1
	}
	return off
}

// OffsetToPoint converts a byte offset to a point, clamping to the document.
func (s *Snapshot) OffsetToPoint(offset int) Point {
	if offset < 0 {
		return Point{}
	}
	for i, l := range s.lines {
		if offset <= len(l) {
			return Point{Line: i, Column: offset}
		}
		offset -= len(l) + 1
	}
	last := len(s.lines) - 1
	return Point{Line: last, Column: len(s.lines[last])}
}

// PointToOffset converts a point to a byte offset, clamping to the document.
func (s *Snapshot) PointToOffset(p Point) int {
	p = s.clamp(p)
	return s.LineStartOffset(p.Line) + p.Column
}

// Slice returns the text inside r.
func (s *Snapshot) Slice(r Range) string {
	full := s.Text()
	return full[s.PointToOffset(r.Start):s.PointToOffset(r.End)]
}

// End returns the point after the last character.
func (s *Snapshot) End() Point {
	last := len(s.lines) - 1
	return Point{Line: last, Column: len(s.lines[last])}
}

func (s *Snapshot) clamp(p Point) Point {
	if p.Line < 0 {
		return Point{}
	}
	if p.Line >= len(s.lines) {
		return s.End()
	}
	if p.Column < 0 {
		p.Column = 0
	}
	if p.Column > len(s.lines[p.Line]) {
		p.Column = len(s.lines[p.Line])
	}
	return p
}

func (s *Snapshot) contains(p Point) bool {
	return p.Line >= 0 && p.Line < len(s.lines) && p.Column >= 0 && p.Column <= len(s.lines[p.Line])
}

// apply returns the snapshot produced by e and the line change it causes.
func (s *Snapshot) apply(e Edit, version uint64) (*Snapshot, Change, error) {
	r := e.Range
	if !r.IsValid() {
		return nil, Change{}, ErrInvalidRange
	}
	if !s.contains(r.Start) || !s.contains(r.End) {
		return nil, Change{}, ErrRangeOutOfBounds
	}

	prefix := s.lines[r.Start.Line][:r.Start.Column]
	suffix := s.lines[r.End.Line][r.End.Column:]
	replaced := splitLines(prefix + e.NewText + suffix)

	lines := make([]string, 0, len(s.lines)-(r.End.Line-r.Start.Line+1)+len(replaced))
	lines = append(lines, s.lines[:r.Start.Line]...)
	lines = append(lines, replaced...)
	lines = append(lines, s.lines[r.End.Line+1:]...)

	change := Change{
		OldStartLine: r.Start.Line,
		OldEndLine:   r.End.Line,
		NewEndLine:   r.Start.Line + len(replaced) - 1,
		Version:      version,
	}
	return &Snapshot{lines: lines, version: version}, change, nil
}

func splitLines(s string) []string {
	return strings.Split(normalizeLineEndings(s), "\n")
}

// normalizeLineEndings converts CRLF and lone CR to LF.
func normalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
