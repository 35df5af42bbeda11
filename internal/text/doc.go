// Package text provides the line-based text buffer that language services
// observe, its immutable snapshots and the ordered stream of change
// notifications produced by edits.
//
// A Buffer owns the current Snapshot. Every applied edit produces a new
// Snapshot with a strictly larger version and one Change describing which
// lines were replaced:
//
//	buf := text.NewBuffer("hello\nworld")
//	snap, changes, err := buf.Apply(text.NewInsert(text.Point{Line: 1}, "big "))
//
// Subscribers registered with Subscribe receive every (Snapshot, Change)
// pair in the order the edits were applied. Snapshots are safe to hand to
// other goroutines; they never change once created.
//
// Positions are zero-based. Columns are byte offsets within a line; the
// UTF16Column and ByteColumn helpers convert for LSP clients.
package text
