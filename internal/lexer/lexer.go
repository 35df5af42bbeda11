package lexer

import "fmt"

// Token is a classified run of bytes within one line.
// Start and End are byte columns, End exclusive.
type Token struct {
	Kind  Kind
	Start int
	End   int
}

// Len returns the token length in bytes.
func (t Token) Len() int {
	return t.End - t.Start
}

// String returns a debug representation like "keyword[0,4)".
func (t Token) String() string {
	return fmt.Sprintf("%s[%d,%d)", t.Kind, t.Start, t.End)
}

// Lexer scans a single line starting from a known state.
//
// Scan must be deterministic: the same line and start state always yield
// the same tokens and end state. Tokens are ordered and non-overlapping.
type Lexer interface {
	Scan(line string, start State) ([]Token, State)

	// Language returns the language this lexer classifies.
	Language() string
}

// FallibleLexer is a Lexer whose scan can fail for reasons outside the line
// and start state, such as a deadline. TryScan reports ok == false for such
// a result: the tokens and end state are a placeholder that a later scan of
// the same input may not reproduce.
type FallibleLexer interface {
	Lexer
	TryScan(line string, start State) (tokens []Token, end State, ok bool)
}

// SafeScan calls lx.Scan and turns a panic into a single error token that
// covers the line. The start state is carried forward in that case.
func SafeScan(lx Lexer, line string, start State) (tokens []Token, end State) {
	tokens, end, _ = ScanLine(lx, line, start)
	return tokens, end
}

// ScanLine is SafeScan that also reports whether the result is stable, that
// is determined by line and start alone. Only a FallibleLexer produces
// unstable results.
func ScanLine(lx Lexer, line string, start State) (tokens []Token, end State, stable bool) {
	defer func() {
		if r := recover(); r != nil {
			tokens = errorLine(line)
			end = start
			stable = true
		}
	}()
	if f, ok := lx.(FallibleLexer); ok {
		return f.TryScan(line, start)
	}
	tokens, end = lx.Scan(line, start)
	return tokens, end, true
}

// Tokenize scans every line from Initial and returns the per-line tokens
// and the state at the start of each line plus the final state.
// starts has len(lines)+1 entries.
func Tokenize(lx Lexer, lines []string) (tokens [][]Token, starts []State) {
	tokens = make([][]Token, len(lines))
	starts = make([]State, len(lines)+1)
	st := Initial()
	for i, line := range lines {
		starts[i] = st
		tokens[i], st = SafeScan(lx, line, st)
	}
	starts[len(lines)] = st
	return tokens, starts
}

func errorLine(line string) []Token {
	if line == "" {
		return nil
	}
	return []Token{{Kind: KindError, Start: 0, End: len(line)}}
}
