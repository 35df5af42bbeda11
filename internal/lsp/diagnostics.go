package lsp

import (
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
)

const diagnosticSource = "lexwork"

// Diagnostics converts parse errors to LSP diagnostics sorted by position.
// snap must be the snapshot the errors were computed from.
func Diagnostics(snap *text.Snapshot, errs []parse.Error) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource

	out := make([]protocol.Diagnostic, 0, len(errs))
	for _, e := range errs {
		out = append(out, protocol.Diagnostic{
			Range:    toProtocolRange(snap, e.Range),
			Severity: &severity,
			Source:   &source,
			Message:  e.Message,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Range.Start, out[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return out
}
