// Package lexer defines the lexer capability consumed by the classifier and
// the parser, together with the immutable lexer-state snapshot that makes
// incremental classification possible.
//
// A Lexer scans one line at a time. It receives the State that was current
// at the start of the line and returns the tokens it found plus the State at
// the end of the line:
//
//	tokens, next := lx.Scan(line, prev)
//
// State is a plain comparable value. Two states compare equal with == if and
// only if every mode frame and counter is equal, and equal states are
// guaranteed to produce identical tokens for identical remaining input. The
// incremental classifier relies on exactly this property to stop re-lexing
// once a recomputed state matches the cached one.
//
// Built-in lexers:
//
//   - Template: a PHP-like template language with text/code regions,
//     interpolated strings and block comments.
//   - Script: a lexer whose scan function is written in Lua.
//
// Lexers never fail. Input they cannot classify is reported as KindError
// tokens and the state is carried forward unchanged.
package lexer
