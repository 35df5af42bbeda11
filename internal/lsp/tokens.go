package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/text"
)

// tokenTypeNames maps kinds to semantic token type names. Kinds missing
// from the map (plain text) produce no semantic token.
var tokenTypeNames = map[lexer.Kind]string{
	lexer.KindKeyword:       "keyword",
	lexer.KindIdentifier:    "identifier",
	lexer.KindVariable:      "variable",
	lexer.KindNumber:        "number",
	lexer.KindString:        "string",
	lexer.KindStringEscape:  "stringEscape",
	lexer.KindInterpolation: "interpolation",
	lexer.KindComment:       "comment",
	lexer.KindOperator:      "operator",
	lexer.KindPunctuation:   "punctuation",
	lexer.KindError:         "error",
}

var (
	legendTypes []string
	legendIndex = make(map[lexer.Kind]int)
)

func init() {
	for _, k := range lexer.Kinds() {
		name, ok := tokenTypeNames[k]
		if !ok {
			continue
		}
		legendIndex[k] = len(legendTypes)
		legendTypes = append(legendTypes, name)
	}
}

// Legend returns the semantic token legend advertised at initialization.
func Legend() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes:     append([]string(nil), legendTypes...),
		TokenModifiers: []string{},
	}
}

// EncodeSemanticTokens encodes spans in the relative five-integer format:
// line delta, start delta, length, type index and modifiers. Columns are
// UTF-16 code units of snap's lines. Spans must be sorted by position.
func EncodeSemanticTokens(snap *text.Snapshot, spans []highlight.Span) []protocol.UInteger {
	data := make([]protocol.UInteger, 0, len(spans)*5)
	prevLine, prevStart := 0, 0
	for _, sp := range spans {
		idx, ok := legendIndex[sp.Kind]
		if !ok || sp.End <= sp.Start || sp.Line >= snap.LineCount() {
			continue
		}
		line := snap.Line(sp.Line)
		start := text.UTF16Column(line, sp.Start)
		length := text.UTF16Column(line, sp.End) - start
		if length <= 0 {
			continue
		}

		deltaStart := start
		if sp.Line == prevLine {
			deltaStart = start - prevStart
		}
		data = append(data,
			protocol.UInteger(sp.Line-prevLine),
			protocol.UInteger(deltaStart),
			protocol.UInteger(length),
			protocol.UInteger(idx),
			0,
		)
		prevLine, prevStart = sp.Line, start
	}
	return data
}
