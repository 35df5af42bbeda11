// Package highlight keeps the lexical classification of a buffer up to
// date as it is edited.
//
// A Classifier caches the lexer state at the start of every line. After an
// edit it re-lexes from the first changed line and stops at the first line
// boundary past the edit where the freshly computed state equals the state
// cached for that boundary before the edit. From there on the old tokens
// are still correct and are reused as is. Because states are compared by
// value, re-lexing converges even when the same state is reached through
// different text.
//
// Theme maps classification kinds to terminal styles and Registry finds
// the lexer for a language name or file extension.
package highlight
