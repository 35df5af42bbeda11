package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/lexwork/internal/text"
)

// toPoint converts an LSP position (UTF-16 columns) to a byte point in
// snap. Positions past the end clamp to the document end.
func toPoint(snap *text.Snapshot, p protocol.Position) text.Point {
	line := int(p.Line)
	if line >= snap.LineCount() {
		return snap.End()
	}
	return text.Point{Line: line, Column: text.ByteColumn(snap.Line(line), int(p.Character))}
}

// toPosition converts a byte point in snap to an LSP position.
func toPosition(snap *text.Snapshot, p text.Point) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(p.Line),
		Character: protocol.UInteger(text.UTF16Column(snap.Line(p.Line), p.Column)),
	}
}

func toTextRange(snap *text.Snapshot, r protocol.Range) text.Range {
	start, end := toPoint(snap, r.Start), toPoint(snap, r.End)
	if end.Before(start) {
		start, end = end, start
	}
	return text.NewRange(start, end)
}

func toProtocolRange(snap *text.Snapshot, r text.Range) protocol.Range {
	return protocol.Range{Start: toPosition(snap, r.Start), End: toPosition(snap, r.End)}
}
