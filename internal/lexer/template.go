package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// templateKeywords are the reserved words of the template language.
var templateKeywords = map[string]bool{
	"abstract": true, "array": true, "as": true, "break": true, "case": true,
	"catch": true, "class": true, "const": true, "continue": true, "default": true,
	"do": true, "echo": true, "else": true, "elseif": true, "extends": true,
	"false": true, "final": true, "fn": true, "for": true, "foreach": true,
	"function": true, "if": true, "implements": true, "interface": true,
	"match": true, "namespace": true, "new": true, "null": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"switch": true, "throw": true, "true": true, "try": true, "use": true,
	"while": true, "yield": true,
}

// Template lexes a PHP-like template language. A document starts in text
// mode; "<?" switches to code until "?>". Double-quoted strings may span
// lines and embed "{$ ... }" expressions, block comments may span lines.
type Template struct{}

// NewTemplate returns the built-in template lexer.
func NewTemplate() *Template {
	return &Template{}
}

// Language returns "template".
func (t *Template) Language() string {
	return "template"
}

// Scan implements Lexer.
func (t *Template) Scan(line string, start State) ([]Token, State) {
	var ctx Context
	start.Apply(&ctx)

	s := &templateScanner{line: line, ctx: &ctx}
	for s.pos < len(s.line) {
		before := s.pos
		switch ctx.Mode() {
		case ModeText:
			s.scanText()
		case ModeCode, ModeStringExpr:
			s.scanCode()
		case ModeString:
			s.scanString()
		case ModeComment:
			s.scanComment()
		default:
			s.emitTo(KindError, len(s.line))
		}
		if s.pos == before {
			s.emitRune(KindError)
		}
	}
	return s.tokens, Capture(&ctx)
}

type templateScanner struct {
	line   string
	pos    int
	ctx    *Context
	tokens []Token
}

// emitTo emits [pos, end) and advances. Runs of text, strings, comments and
// errors are merged with an adjacent token of the same kind.
func (s *templateScanner) emitTo(kind Kind, end int) {
	if end > len(s.line) {
		end = len(s.line)
	}
	if end <= s.pos {
		return
	}
	if n := len(s.tokens); n > 0 && mergeable(kind) {
		last := &s.tokens[n-1]
		if last.Kind == kind && last.End == s.pos {
			last.End = end
			s.pos = end
			return
		}
	}
	s.tokens = append(s.tokens, Token{Kind: kind, Start: s.pos, End: end})
	s.pos = end
}

func (s *templateScanner) emitRune(kind Kind) {
	_, size := utf8.DecodeRuneInString(s.line[s.pos:])
	s.emitTo(kind, s.pos+size)
}

func mergeable(k Kind) bool {
	switch k {
	case KindText, KindString, KindComment, KindError:
		return true
	}
	return false
}

func (s *templateScanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.line[s.pos:], p)
}

func (s *templateScanner) scanText() {
	idx := strings.Index(s.line[s.pos:], "<?")
	if idx < 0 {
		s.emitTo(KindText, len(s.line))
		return
	}
	s.emitTo(KindText, s.pos+idx)

	end := s.pos + 2
	switch {
	case strings.HasPrefix(s.line[end:], "php"):
		end += 3
	case strings.HasPrefix(s.line[end:], "="):
		end++
	}
	if s.ctx.Push(ModeCode) {
		s.emitTo(KindPunctuation, end)
	} else {
		s.emitTo(KindError, end)
	}
}

func (s *templateScanner) scanCode() {
	c := s.line[s.pos]
	mode := s.ctx.Mode()

	switch {
	case c == ' ' || c == '\t' || c == '\r':
		s.pos++
	case mode == ModeCode && s.hasPrefix("?>"):
		s.emitTo(KindPunctuation, s.pos+2)
		if !s.ctx.Pop() {
			s.ctx.Enter(ModeText)
		}
	case s.hasPrefix("/*"):
		if s.ctx.Push(ModeComment) {
			s.emitTo(KindComment, s.pos+2)
		} else {
			s.emitTo(KindError, s.pos+2)
		}
	case s.hasPrefix("//") || c == '#':
		end := len(s.line)
		if mode == ModeCode {
			if i := strings.Index(s.line[s.pos:], "?>"); i >= 0 {
				end = s.pos + i
			}
		}
		s.emitTo(KindComment, end)
	case c == '"':
		if s.ctx.Push(ModeString) {
			s.emitTo(KindString, s.pos+1)
		} else {
			s.emitTo(KindError, s.pos+1)
		}
	case c == '\'':
		s.scanQuoted()
	case c == '$':
		if end := s.identEnd(s.pos + 1); end > s.pos+1 {
			s.emitTo(KindVariable, end)
		} else {
			s.emitTo(KindError, s.pos+1)
		}
	case c >= '0' && c <= '9':
		s.emitTo(KindNumber, s.numberEnd())
	case c == '{':
		if mode == ModeStringExpr {
			s.ctx.IncBraces()
		}
		s.emitTo(KindPunctuation, s.pos+1)
	case c == '}':
		if mode == ModeStringExpr && s.ctx.DecBraces() == 0 {
			s.emitTo(KindInterpolation, s.pos+1)
			s.ctx.Pop()
			return
		}
		s.emitTo(KindPunctuation, s.pos+1)
	case strings.IndexByte("()[];,@", c) >= 0:
		s.emitTo(KindPunctuation, s.pos+1)
	case isOperator(c) || c == '\\':
		s.emitTo(KindOperator, s.operatorEnd(mode))
	default:
		if end := s.identEnd(s.pos); end > s.pos {
			word := s.line[s.pos:end]
			if templateKeywords[strings.ToLower(word)] {
				s.emitTo(KindKeyword, end)
			} else {
				s.emitTo(KindIdentifier, end)
			}
			return
		}
		s.emitRune(KindError)
	}
}

func (s *templateScanner) scanString() {
	for i := s.pos; i < len(s.line); {
		switch c := s.line[i]; {
		case c == '\\':
			s.emitTo(KindString, i)
			s.emitTo(KindStringEscape, i+2)
			i = s.pos
		case c == '"':
			s.emitTo(KindString, i+1)
			s.ctx.Pop()
			return
		case c == '{' && i+1 < len(s.line) && s.line[i+1] == '$':
			s.emitTo(KindString, i)
			if s.ctx.Push(ModeStringExpr) {
				s.ctx.IncBraces()
				s.emitTo(KindInterpolation, i+1)
			} else {
				s.emitTo(KindError, i+1)
			}
			return
		case c == '$' && s.identEnd(i+1) > i+1:
			s.emitTo(KindString, i)
			s.emitTo(KindVariable, s.identEnd(i+1))
			i = s.pos
		default:
			i++
		}
	}
	s.emitTo(KindString, len(s.line))
}

func (s *templateScanner) scanComment() {
	idx := strings.Index(s.line[s.pos:], "*/")
	if idx < 0 {
		s.emitTo(KindComment, len(s.line))
		return
	}
	s.emitTo(KindComment, s.pos+idx+2)
	s.ctx.Pop()
}

// scanQuoted handles single-quoted strings, which never span lines.
func (s *templateScanner) scanQuoted() {
	for i := s.pos + 1; i < len(s.line); i++ {
		switch s.line[i] {
		case '\\':
			i++
		case '\'':
			s.emitTo(KindString, i+1)
			return
		}
	}
	s.emitTo(KindError, len(s.line))
}

func (s *templateScanner) identEnd(from int) int {
	i := from
	for i < len(s.line) {
		r, size := utf8.DecodeRuneInString(s.line[i:])
		if r == '_' || unicode.IsLetter(r) || (i > from && unicode.IsDigit(r)) {
			i += size
			continue
		}
		break
	}
	return i
}

func (s *templateScanner) numberEnd() int {
	i := s.pos
	if s.hasPrefix("0x") || s.hasPrefix("0X") {
		i += 2
		for i < len(s.line) && (isHex(s.line[i]) || s.line[i] == '_') {
			i++
		}
		return i
	}
	seenDot, seenExp := false, false
	for i < len(s.line) {
		c := s.line[i]
		switch {
		case c >= '0' && c <= '9' || c == '_':
		case c == '.' && !seenDot && !seenExp && i+1 < len(s.line) && s.line[i+1] >= '0' && s.line[i+1] <= '9':
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp:
			seenExp = true
			if i+1 < len(s.line) && (s.line[i+1] == '+' || s.line[i+1] == '-') {
				i++
			}
		default:
			return i
		}
		i++
	}
	return i
}

// operatorEnd returns the end of an operator run, stopping before a close
// tag or a comment opener.
func (s *templateScanner) operatorEnd(mode Mode) int {
	i := s.pos + 1
	for i < len(s.line) && (isOperator(s.line[i]) || s.line[i] == '\\') {
		rest := s.line[i:]
		if strings.HasPrefix(rest, "/*") || strings.HasPrefix(rest, "//") {
			break
		}
		if mode == ModeCode && strings.HasPrefix(rest, "?>") {
			break
		}
		i++
	}
	return i
}

func isOperator(c byte) bool {
	return strings.IndexByte("+-*/%=<>!&|^~.?:", c) >= 0
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
