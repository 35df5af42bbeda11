package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
)

func TestLegendSkipsText(t *testing.T) {
	legend := Legend()
	assert.NotContains(t, legend.TokenTypes, "text")
	assert.Equal(t, "keyword", legend.TokenTypes[0])
	assert.Len(t, legend.TokenTypes, len(lexer.Kinds())-1)
	assert.NotNil(t, legend.TokenModifiers)
}

func TestEncodeSemanticTokens(t *testing.T) {
	snap := text.NewSnapshot("a😀b\nc", 1)
	spans := []highlight.Span{
		{Line: 0, Start: 0, End: 1, Kind: lexer.KindText},
		{Line: 0, Start: 1, End: 5, Kind: lexer.KindString},
		{Line: 0, Start: 5, End: 6, Kind: lexer.KindIdentifier},
		{Line: 1, Start: 0, End: 1, Kind: lexer.KindKeyword},
		{Line: 5, Start: 0, End: 1, Kind: lexer.KindKeyword},
	}
	assert.Equal(t, []protocol.UInteger{
		0, 1, 2, 4, 0,
		0, 2, 1, 1, 0,
		1, 0, 1, 0, 0,
	}, EncodeSemanticTokens(snap, spans))

	assert.Empty(t, EncodeSemanticTokens(snap, nil))
}

func TestPositionConversion(t *testing.T) {
	snap := text.NewSnapshot("a😀b\nxyz", 1)

	tests := []struct {
		pos  protocol.Position
		want text.Point
	}{
		{protocol.Position{Line: 0, Character: 0}, text.Point{Line: 0, Column: 0}},
		{protocol.Position{Line: 0, Character: 3}, text.Point{Line: 0, Column: 5}},
		{protocol.Position{Line: 0, Character: 99}, text.Point{Line: 0, Column: 6}},
		{protocol.Position{Line: 1, Character: 2}, text.Point{Line: 1, Column: 2}},
		{protocol.Position{Line: 9, Character: 0}, text.Point{Line: 1, Column: 3}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toPoint(snap, tt.pos), "%+v", tt.pos)
	}

	assert.Equal(t, protocol.Position{Line: 0, Character: 3}, toPosition(snap, text.Point{Line: 0, Column: 5}))

	r := toTextRange(snap, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 1},
		End:   protocol.Position{Line: 0, Character: 1},
	})
	assert.Equal(t, text.Point{Line: 0, Column: 1}, r.Start, "reversed ranges are normalized")
}

func TestDiagnosticsSorted(t *testing.T) {
	snap := text.NewSnapshot("😀 {\n}}", 1)
	errs := []parse.Error{
		{Range: text.NewRange(text.Point{Line: 1, Column: 1}, text.Point{Line: 1, Column: 2}), Message: "unexpected \"}\""},
		{Range: text.NewRange(text.Point{Line: 0, Column: 5}, text.Point{Line: 0, Column: 6}), Message: "unclosed brace"},
	}

	diags := Diagnostics(snap, errs)
	if assert.Len(t, diags, 2) {
		assert.Equal(t, "unclosed brace", diags[0].Message)
		assert.Equal(t, protocol.Position{Line: 0, Character: 3}, diags[0].Range.Start)
		assert.Equal(t, protocol.Position{Line: 1, Character: 1}, diags[1].Range.Start)
	}
}
