package parse

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/text"
)

// Node kinds produced by StructureParser.
const (
	NodeDocument      = "document"
	NodeCode          = "code"
	NodeParen         = "paren"
	NodeBracket       = "bracket"
	NodeBrace         = "brace"
	NodeInterpolation = "interpolation"
)

// checkEvery is how many lines are scanned between cancellation checks.
const checkEvery = 256

// StructureParser builds a tree of delimited regions on top of a lexer:
// "<? ?>" code regions, parentheses, brackets, braces and string
// interpolations. It reports unbalanced delimiters, error tokens and
// constructs left open at the end of the document. Delimiters opened in a
// code region must be closed in the same region.
type StructureParser struct {
	lx lexer.Lexer
}

// NewStructureParser creates a parser that tokenizes with lx. lx must be
// safe for use from the scheduler's worker goroutine.
func NewStructureParser(lx lexer.Lexer) *StructureParser {
	return &StructureParser{lx: lx}
}

type structureState struct {
	snap   *text.Snapshot
	root   *Node
	stack  []*Node
	tokens []Token
	errors []Error
}

// Parse implements Parser.
func (p *StructureParser) Parse(ctx context.Context, snap *text.Snapshot) (Output, error) {
	s := &structureState{
		snap: snap,
		root: &Node{Kind: NodeDocument, End: snap.Len()},
	}
	s.stack = []*Node{s.root}

	st := lexer.Initial()
	offset := 0
	for i := 0; i < snap.LineCount(); i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Output{}, err
			}
		}
		line := snap.Line(i)
		var toks []lexer.Token
		toks, st = lexer.SafeScan(p.lx, line, st)
		for _, t := range toks {
			s.token(t.Kind, offset+t.Start, line[t.Start:t.End])
		}
		offset += len(line) + 1
	}
	s.finish(st)

	return Output{Tokens: s.tokens, Errors: s.errors, Tree: s.root}, nil
}

func (s *structureState) errorAt(offset, length int, format string, args ...any) {
	start := s.snap.OffsetToPoint(offset)
	end := s.snap.OffsetToPoint(offset + length)
	s.errors = append(s.errors, Error{
		Range:   text.NewRange(start, end),
		Offset:  offset,
		Length:  length,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *structureState) token(kind lexer.Kind, start int, src string) {
	s.tokens = append(s.tokens, Token{Kind: kind, Start: start, Length: len(src), Text: src})

	switch kind {
	case lexer.KindError:
		s.errorAt(start, len(src), "unexpected %q", src)
	case lexer.KindInterpolation:
		switch src {
		case "{":
			s.open(NodeInterpolation, start)
		case "}":
			s.close(NodeInterpolation, start, 1, "}")
		}
	case lexer.KindPunctuation:
		switch {
		case strings.HasPrefix(src, "<?"):
			s.open(NodeCode, start)
		case src == "?>":
			s.close(NodeCode, start, 2, "?>")
		default:
			for i := 0; i < len(src); i++ {
				s.delimiter(src[i], start+i)
			}
		}
	}
}

func (s *structureState) delimiter(c byte, at int) {
	switch c {
	case '(':
		s.open(NodeParen, at)
	case '[':
		s.open(NodeBracket, at)
	case '{':
		s.open(NodeBrace, at)
	case ')':
		s.close(NodeParen, at, 1, ")")
	case ']':
		s.close(NodeBracket, at, 1, "]")
	case '}':
		s.close(NodeBrace, at, 1, "}")
	}
}

func (s *structureState) open(kind string, at int) {
	n := &Node{Kind: kind, Start: at, End: -1}
	top := s.stack[len(s.stack)-1]
	top.Children = append(top.Children, n)
	s.stack = append(s.stack, n)
}

// close ends the innermost open node of kind. Nodes opened inside it and
// still open are reported and closed with it.
func (s *structureState) close(kind string, at, length int, src string) {
	idx := -1
	for i := len(s.stack) - 1; i > 0; i-- {
		if s.stack[i].Kind == kind {
			idx = i
			break
		}
		// A code region bounds the delimiters inside it.
		if s.stack[i].Kind == NodeCode && kind != NodeCode {
			break
		}
	}
	if idx < 0 {
		s.errorAt(at, length, "unmatched %q", src)
		return
	}
	for i := len(s.stack) - 1; i > idx; i-- {
		n := s.stack[i]
		n.End = at
		s.errorAt(n.Start, 1, "unclosed %s before %q", n.Kind, src)
	}
	s.stack[idx].End = at + length
	s.stack = s.stack[:idx]
}

func (s *structureState) finish(end lexer.State) {
	docEnd := s.snap.Len()
	for i := len(s.stack) - 1; i > 0; i-- {
		n := s.stack[i]
		n.End = docEnd
		// Files may end inside a code region.
		if n.Kind != NodeCode {
			s.errorAt(n.Start, 1, "unclosed %s", n.Kind)
		}
	}
	s.stack = s.stack[:1]

	switch m := end.Mode(); {
	case m == lexer.ModeString || m == lexer.ModeStringExpr:
		s.errorAt(docEnd, 0, "unterminated string at end of document")
	case m == lexer.ModeComment:
		s.errorAt(docEnd, 0, "unterminated comment at end of document")
	case m >= lexer.ModeUser0:
		s.errorAt(docEnd, 0, "unterminated %s at end of document", m)
	}
}
