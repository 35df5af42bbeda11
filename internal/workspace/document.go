package workspace

import (
	"errors"
	"sync"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
)

// Document is one open buffer together with its classifier and parse
// scheduler.
type Document struct {
	uri      string
	language string

	buf        *text.Buffer
	classifier *highlight.Classifier
	scheduler  *background.Scheduler
	lexers     []lexer.Lexer

	unsubscribe func()

	mu       sync.Mutex
	closed   bool
	lastPass highlight.Result
}

// URI returns the document URI.
func (d *Document) URI() string { return d.uri }

// Language returns the resolved language name.
func (d *Document) Language() string { return d.language }

// onChange runs for every applied edit, in order: classification first,
// then the debounced parse.
func (d *Document) onChange(snap *text.Snapshot, change text.Change) {
	res := d.classifier.Classify(snap, change)

	d.mu.Lock()
	d.lastPass = res
	d.mu.Unlock()

	// The scheduler only fails once closed, which happens after the
	// buffer subscription is removed.
	_ = d.scheduler.NotifyEdit(snap)
}

// Apply applies edits to the buffer. Classification is updated before
// Apply returns.
func (d *Document) Apply(edits ...text.Edit) (*text.Snapshot, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	snap, _, err := d.buf.Apply(edits...)
	return snap, err
}

// Replace replaces the whole content.
func (d *Document) Replace(content string) (*text.Snapshot, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	snap, _, err := d.buf.Replace(content)
	return snap, err
}

// Snapshot returns the current snapshot.
func (d *Document) Snapshot() *text.Snapshot {
	return d.buf.Snapshot()
}

// Version returns the current buffer version.
func (d *Document) Version() uint64 {
	return d.buf.Version()
}

// Spans returns the classification of lines [startLine, endLine).
func (d *Document) Spans(startLine, endLine int) []highlight.Span {
	return d.classifier.Spans(startLine, endLine)
}

// VersionedSpans returns the classification of lines [startLine, endLine)
// and the buffer version it belongs to.
func (d *Document) VersionedSpans(startLine, endLine int) ([]highlight.Span, uint64) {
	return d.classifier.VersionedSpans(startLine, endLine)
}

// LastClassification returns what the most recent incremental pass did.
func (d *Document) LastClassification() highlight.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastPass
}

// ClassifierStats returns the classifier counters.
func (d *Document) ClassifierStats() highlight.Stats {
	return d.classifier.Stats()
}

// Subscribe registers fn for parse results and failures.
func (d *Document) Subscribe(fn func(background.Event)) background.Subscription {
	return d.scheduler.Subscribe(fn)
}

// LatestResult returns the most recently published parse result, or nil.
func (d *Document) LatestResult() *parse.Result {
	return d.scheduler.Latest()
}

// ParseState returns the scheduler state.
func (d *Document) ParseState() background.State {
	return d.scheduler.State()
}

// ParseStats returns the scheduler counters.
func (d *Document) ParseStats() background.Stats {
	return d.scheduler.Stats()
}

// Reparse asks for a parse now, bypassing the debounce window.
func (d *Document) Reparse(force bool) error {
	return d.scheduler.Request(force)
}

func (d *Document) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Document) close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	errs := []error{d.scheduler.Close()}
	for _, lx := range d.lexers {
		errs = append(errs, closeLexer(lx))
	}
	return errors.Join(errs...)
}
