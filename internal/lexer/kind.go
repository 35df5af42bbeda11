package lexer

// Kind is the classification of a token.
type Kind uint8

// Token kinds. KindError marks input the lexer could not classify.
const (
	KindNone Kind = iota
	KindText
	KindKeyword
	KindIdentifier
	KindVariable
	KindNumber
	KindString
	KindStringEscape
	KindInterpolation
	KindComment
	KindOperator
	KindPunctuation
	KindError

	kindCount
)

var kindNames = [kindCount]string{
	KindNone:          "none",
	KindText:          "text",
	KindKeyword:       "keyword",
	KindIdentifier:    "identifier",
	KindVariable:      "variable",
	KindNumber:        "number",
	KindString:        "string",
	KindStringEscape:  "string.escape",
	KindInterpolation: "interpolation",
	KindComment:       "comment",
	KindOperator:      "operator",
	KindPunctuation:   "punctuation",
	KindError:         "error",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// KindFromString returns the kind with the given name, or KindNone.
func KindFromString(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return KindNone
}

// Kinds returns every classification kind except KindNone, in order.
// The index of a kind in this list is Kind-1.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindText; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// IsError reports whether k marks unrecognized input.
func (k Kind) IsError() bool {
	return k == KindError
}
