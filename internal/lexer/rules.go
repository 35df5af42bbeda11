package lexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules is a table-driven lexer built from ordered regular-expression
// rules, keyword sets and delimited blocks that may span lines.
//
// At each position the lexer tries, in order: the start of a block, every
// rule in registration order, then an identifier (checked against the
// keyword set). A punctuation byte outside those becomes KindPunctuation;
// any other rune is unrecognized and becomes KindError. Rule patterns are
// anchored at the scan position.
type Rules struct {
	language string
	rules    []rule
	blocks   []block
	keywords map[string]Kind
}

type rule struct {
	pattern *regexp.Regexp
	kind    Kind
}

type block struct {
	start string
	end   string
	kind  Kind
}

// NewRules creates an empty rule lexer for language.
func NewRules(language string) *Rules {
	return &Rules{
		language: language,
		keywords: make(map[string]Kind),
	}
}

// AddRule adds a pattern. It panics if the pattern does not compile, like
// regexp.MustCompile.
func (r *Rules) AddRule(pattern string, kind Kind) *Rules {
	r.rules = append(r.rules, rule{
		pattern: regexp.MustCompile(`^(?:` + pattern + `)`),
		kind:    kind,
	})
	return r
}

// AddKeywords classifies the given identifiers as kind.
func (r *Rules) AddKeywords(kind Kind, words ...string) *Rules {
	for _, w := range words {
		r.keywords[w] = kind
	}
	return r
}

// AddBlock adds a construct delimited by start and end that may span
// lines. Each block gets its own mode, ModeUser0 plus its index.
func (r *Rules) AddBlock(start, end string, kind Kind) *Rules {
	if len(r.blocks) >= int(^Mode(0)-ModeUser0) {
		panic(fmt.Sprintf("lexer: too many blocks for %s", r.language))
	}
	r.blocks = append(r.blocks, block{start: start, end: end, kind: kind})
	return r
}

// Language returns the language name.
func (r *Rules) Language() string {
	return r.language
}

// Scan implements Lexer.
func (r *Rules) Scan(line string, start State) ([]Token, State) {
	var ctx Context
	start.Apply(&ctx)

	var tokens []Token
	emit := func(kind Kind, from, to int) {
		if to <= from {
			return
		}
		if n := len(tokens); n > 0 && tokens[n-1].Kind == kind && tokens[n-1].End == from && kind != KindIdentifier && kind != KindKeyword {
			tokens[n-1].End = to
			return
		}
		tokens = append(tokens, Token{Kind: kind, Start: from, End: to})
	}

	pos := 0
	for pos < len(line) {
		if m := ctx.Mode(); m >= ModeUser0 {
			idx := int(m - ModeUser0)
			if idx >= len(r.blocks) {
				// State produced by some other lexer; nothing sensible to do.
				emit(KindError, pos, len(line))
				ctx.Enter(ModeText)
				pos = len(line)
				break
			}
			b := r.blocks[idx]
			i := strings.Index(line[pos:], b.end)
			if i < 0 {
				emit(b.kind, pos, len(line))
				pos = len(line)
				break
			}
			emit(b.kind, pos, pos+i+len(b.end))
			pos += i + len(b.end)
			ctx.Enter(ModeText)
			continue
		}

		c := line[pos]
		if c == ' ' || c == '\t' || c == '\r' {
			pos++
			continue
		}
		if idx, ok := r.blockAt(line, pos); ok {
			b := r.blocks[idx]
			emit(b.kind, pos, pos+len(b.start))
			pos += len(b.start)
			ctx.Enter(ModeUser0 + Mode(idx))
			continue
		}
		if kind, n := r.matchRule(line[pos:]); n > 0 {
			emit(kind, pos, pos+n)
			pos += n
			continue
		}
		if end := identEnd(line, pos); end > pos {
			kind := KindIdentifier
			if k, ok := r.keywords[line[pos:end]]; ok {
				kind = k
			}
			emit(kind, pos, end)
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(line[pos:])
		kind := KindError
		if isPunct(c) {
			kind = KindPunctuation
		}
		emit(kind, pos, pos+size)
		pos += size
	}
	return tokens, Capture(&ctx)
}

func (r *Rules) blockAt(line string, pos int) (int, bool) {
	for i, b := range r.blocks {
		if strings.HasPrefix(line[pos:], b.start) {
			return i, true
		}
	}
	return 0, false
}

func (r *Rules) matchRule(s string) (Kind, int) {
	for _, ru := range r.rules {
		if loc := ru.pattern.FindStringIndex(s); loc != nil && loc[1] > 0 {
			return ru.kind, loc[1]
		}
	}
	return KindNone, 0
}

// identEnd returns the end of the identifier starting at pos, or pos if
// there is none. Letters may be any Unicode letter.
func identEnd(line string, pos int) int {
	end := pos
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if r == '_' || unicode.IsLetter(r) || (end > pos && unicode.IsDigit(r)) {
			end += size
			continue
		}
		break
	}
	return end
}

func isPunct(c byte) bool {
	return strings.IndexByte("(){}[];,.:", c) >= 0
}

// GoRules returns a rule lexer for Go source.
func GoRules() *Rules {
	r := NewRules("go")
	r.AddBlock("/*", "*/", KindComment)
	r.AddBlock("`", "`", KindString)

	r.AddRule(`//.*$`, KindComment)
	r.AddRule(`"(?:[^"\\]|\\.)*"`, KindString)
	r.AddRule(`'(?:[^'\\]|\\.)+'`, KindString)
	r.AddRule(`["'](?:[^\\]|\\.)*\\?$`, KindError)
	r.AddRule(`0[xX][0-9a-fA-F_]+|0[bB][01_]+|0[oO][0-7_]+`, KindNumber)
	r.AddRule(`\d[\d_]*\.?\d*(?:[eE][+-]?\d+)?i?`, KindNumber)
	r.AddRule(`[-+*/%&|^<>=!:.~]+`, KindOperator)

	r.AddKeywords(KindKeyword,
		"break", "case", "chan", "const", "continue", "default", "defer",
		"else", "fallthrough", "for", "func", "go", "goto", "if", "import",
		"interface", "map", "package", "range", "return", "select", "struct",
		"switch", "type", "var", "true", "false", "nil", "iota")
	return r
}

// LuaRules returns a rule lexer for Lua, the language grammar scripts
// are written in.
func LuaRules() *Rules {
	r := NewRules("lua")
	r.AddBlock("--[[", "]]", KindComment)
	r.AddBlock("[[", "]]", KindString)

	r.AddRule(`--.*$`, KindComment)
	r.AddRule(`"(?:[^"\\]|\\.)*"`, KindString)
	r.AddRule(`'(?:[^'\\]|\\.)*'`, KindString)
	r.AddRule(`["'](?:[^\\]|\\.)*\\?$`, KindError)
	r.AddRule(`0[xX][0-9a-fA-F]+`, KindNumber)
	r.AddRule(`\d+\.?\d*(?:[eE][+-]?\d+)?`, KindNumber)
	r.AddRule(`\.\.\.?|[-+*/%^#=<>~]+`, KindOperator)

	r.AddKeywords(KindKeyword,
		"and", "break", "do", "else", "elseif", "end", "false", "for",
		"function", "goto", "if", "in", "local", "nil", "not", "or",
		"repeat", "return", "then", "true", "until", "while")
	return r
}
