package lexer

import (
	"fmt"
	"strings"
)

// MaxDepth is the maximum number of nested mode frames a State can hold.
const MaxDepth = 8

// Mode identifies a lexical context.
type Mode uint8

// Built-in modes. Scripted lexers may use ModeUser0 and above freely.
const (
	ModeText Mode = iota
	ModeCode
	ModeString
	ModeStringExpr
	ModeComment

	ModeUser0 Mode = 16
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeCode:
		return "code"
	case ModeString:
		return "string"
	case ModeStringExpr:
		return "string-expr"
	case ModeComment:
		return "comment"
	}
	if m >= ModeUser0 {
		return fmt.Sprintf("user%d", m-ModeUser0)
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Frame is one entry of the mode stack.
type Frame struct {
	Mode Mode
	// Braces counts unclosed '{' inside an embedded expression.
	Braces uint16
}

// State is an immutable snapshot of everything a lexer needs to resume
// scanning at a line boundary. States are comparable with ==.
//
// The zero State is not a valid snapshot; start from Initial.
type State struct {
	frames [MaxDepth]Frame
	depth  uint8
}

var initial = InitialFor(ModeText)

// Initial returns the canonical start-of-document state.
func Initial() State {
	return initial
}

// InitialFor returns a single-frame state in the given mode.
func InitialFor(mode Mode) State {
	var s State
	s.frames[0] = Frame{Mode: mode}
	s.depth = 1
	return s
}

// NewState builds a state from a bottom-to-top frame list. Frames beyond
// MaxDepth are dropped. An empty list yields Initial.
func NewState(frames ...Frame) State {
	if len(frames) == 0 {
		return Initial()
	}
	var s State
	n := copy(s.frames[:], frames)
	s.depth = uint8(n)
	return s
}

// Mode returns the mode on top of the stack.
func (s State) Mode() Mode {
	if s.depth == 0 {
		return ModeText
	}
	return s.frames[s.depth-1].Mode
}

// Braces returns the brace counter of the top frame.
func (s State) Braces() uint16 {
	if s.depth == 0 {
		return 0
	}
	return s.frames[s.depth-1].Braces
}

// Depth returns the number of frames on the stack.
func (s State) Depth() int {
	return int(s.depth)
}

// Frames returns a copy of the stack, bottom first.
func (s State) Frames() []Frame {
	out := make([]Frame, s.depth)
	copy(out, s.frames[:s.depth])
	return out
}

// Equal reports whether two states are structurally equal.
func (s State) Equal(other State) bool {
	return s == other
}

// Apply configures ctx so that scanning resumes exactly where s was taken.
func (s State) Apply(ctx *Context) {
	ctx.frames = s.frames
	ctx.depth = int(s.depth)
	if ctx.depth == 0 {
		ctx.frames[0] = Frame{Mode: ModeText}
		ctx.depth = 1
	}
	ctx.overflow = false
}

// String renders the stack, e.g. "text>code>string".
func (s State) String() string {
	if s.depth == 0 {
		return "<invalid>"
	}
	var b strings.Builder
	for i := 0; i < int(s.depth); i++ {
		if i > 0 {
			b.WriteByte('>')
		}
		f := s.frames[i]
		b.WriteString(f.Mode.String())
		if f.Braces > 0 {
			fmt.Fprintf(&b, "{%d}", f.Braces)
		}
	}
	return b.String()
}

// Capture freezes the current mode stack of ctx into a new State.
// Frames above the live depth are zeroed so equal stacks compare equal.
func Capture(ctx *Context) State {
	var s State
	copy(s.frames[:ctx.depth], ctx.frames[:ctx.depth])
	s.depth = uint8(ctx.depth)
	return s
}

// Context is the mutable scanning context a lexer works on while it scans
// a single line. It is never shared between goroutines.
type Context struct {
	frames   [MaxDepth]Frame
	depth    int
	overflow bool
}

// Mode returns the current mode.
func (c *Context) Mode() Mode {
	return c.frames[c.depth-1].Mode
}

// Depth returns the number of frames on the stack.
func (c *Context) Depth() int {
	return c.depth
}

// Under returns the mode one frame below the top, or false at the bottom.
func (c *Context) Under() (Mode, bool) {
	if c.depth < 2 {
		return 0, false
	}
	return c.frames[c.depth-2].Mode, true
}

// Push enters a nested mode. It returns false and records an overflow when
// the stack is full; the mode is left unchanged in that case.
func (c *Context) Push(m Mode) bool {
	if c.depth >= MaxDepth {
		c.overflow = true
		return false
	}
	c.frames[c.depth] = Frame{Mode: m}
	c.depth++
	return true
}

// Pop leaves the current mode. The bottom frame is never popped.
func (c *Context) Pop() bool {
	if c.depth <= 1 {
		return false
	}
	c.depth--
	c.frames[c.depth] = Frame{}
	return true
}

// Enter replaces the current mode without changing the depth.
func (c *Context) Enter(m Mode) {
	c.frames[c.depth-1] = Frame{Mode: m}
}

// Braces returns the brace counter of the current frame.
func (c *Context) Braces() uint16 {
	return c.frames[c.depth-1].Braces
}

// IncBraces increments the brace counter of the current frame.
func (c *Context) IncBraces() {
	f := &c.frames[c.depth-1]
	if f.Braces < ^uint16(0) {
		f.Braces++
	}
}

// DecBraces decrements the brace counter of the current frame and returns
// the new value.
func (c *Context) DecBraces() uint16 {
	f := &c.frames[c.depth-1]
	if f.Braces > 0 {
		f.Braces--
	}
	return f.Braces
}

// Overflowed reports whether a Push failed since the last Apply.
func (c *Context) Overflowed() bool {
	return c.overflow
}
