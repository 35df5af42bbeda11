package text

import "github.com/sergi/go-diff/diffmatchpatch"

// Diff returns line-granular edits that turn oldText into newText.
// The edits are meant to be applied in order with Buffer.Apply; each
// range refers to the document as left by the previous edit.
func Diff(oldText, newText string) []Edit {
	oldText = normalizeLineEndings(oldText)
	newText = normalizeLineEndings(newText)
	if oldText == newText {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var (
		edits   []Edit
		pos     Point
		pending *Edit
	)
	flush := func() {
		if pending != nil {
			edits = append(edits, *pending)
			pending = nil
		}
	}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			pos = advance(pos, d.Text)
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &Edit{Range: Range{Start: pos, End: pos}}
			}
			pending.Range.End = advance(pending.Range.End, d.Text)
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &Edit{Range: Range{Start: pos, End: pos}}
			}
			pending.NewText += d.Text
			pos = advance(pos, d.Text)
		}
	}
	flush()
	return edits
}

// advance returns the point reached by writing s starting at p.
func advance(p Point, s string) Point {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			p.Line++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}
