package highlight

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/text"
)

// Span is a classified range within one line. Start and End are byte
// columns, End exclusive.
type Span struct {
	Line  int
	Start int
	End   int
	Kind  lexer.Kind
}

// Result describes what one classification pass did.
type Result struct {
	// Version is the snapshot version the classifier now reflects.
	Version uint64

	// FirstLine and LastLine bound the re-lexed lines (inclusive) in the
	// new snapshot. Classification outside this range did not change.
	FirstLine int
	LastLine  int

	// Converged is true when re-lexing stopped early at ConvergedAt, the
	// line whose start state matched the cached one. ConvergedAt is -1
	// when the pass ran to the end of the document.
	Converged   bool
	ConvergedAt int

	// Relexed is the number of lines scanned.
	Relexed int

	// Reset is true when the whole document was classified from scratch.
	Reset bool

	// Spans holds the new classification of FirstLine..LastLine.
	Spans []Span
}

// Stats are cumulative counters for a classifier.
type Stats struct {
	Passes       uint64
	Resets       uint64
	Convergences uint64
	RelexedLines uint64
	// Unstable counts line scans whose result depended on more than the
	// line and its start state, such as a grammar script timing out.
	Unstable uint64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(c *Classifier) {
		c.log = l
	}
}

// Classifier maintains the classification of one buffer. All methods are
// safe for concurrent use and never block on anything but the classifier's
// own lock.
type Classifier struct {
	mu  sync.RWMutex
	lx  lexer.Lexer
	log commonlog.Logger

	version uint64
	// tokens[i] are the tokens of line i.
	tokens [][]lexer.Token
	// starts[i] is the state at the start of line i; the last entry is
	// the state at the end of the document.
	starts []lexer.State
	// unstable lists, in order, the lines whose cached scan is a
	// placeholder. They are re-lexed by the next Classify.
	unstable []int

	stats Stats
}

// New creates a classifier for the given lexer. It classifies an empty
// document until Reset is called.
func New(lx lexer.Lexer, opts ...Option) *Classifier {
	c := &Classifier{
		lx:     lx,
		log:    logging.Get("highlight"),
		tokens: [][]lexer.Token{nil},
		starts: []lexer.State{lexer.Initial(), lexer.Initial()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Language returns the language of the underlying lexer.
func (c *Classifier) Language() string {
	return c.lx.Language()
}

// Reset classifies snap from scratch and replaces all cached state.
func (c *Classifier) Reset(snap *text.Snapshot) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reset(snap)
}

func (c *Classifier) reset(snap *text.Snapshot) Result {
	lines := snap.Lines()
	c.tokens = make([][]lexer.Token, len(lines))
	c.starts = make([]lexer.State, len(lines)+1)
	c.unstable = nil
	st := lexer.Initial()
	for i, line := range lines {
		c.starts[i] = st
		c.tokens[i], st = c.scan(i, line, st)
	}
	c.starts[len(lines)] = st
	c.version = snap.Version()

	c.stats.Passes++
	c.stats.Resets++
	c.stats.RelexedLines += uint64(len(lines))

	return Result{
		Version:     c.version,
		FirstLine:   0,
		LastLine:    len(lines) - 1,
		ConvergedAt: -1,
		Relexed:     len(lines),
		Reset:       true,
		Spans:       c.spansLocked(0, len(lines)),
	}
}

// Classify brings the classification up to date with snap, which must be
// the snapshot produced by change. Changes must arrive in version order
// with no gaps. If change does not fit the cached document (a notification
// was missed or arrived out of order), the document is classified from
// scratch instead.
func (c *Classifier) Classify(snap *text.Snapshot, change text.Change) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldCount := len(c.tokens)
	delta := change.LineDelta()
	newCount := snap.LineCount()

	if change.Version != snap.Version() ||
		change.Version != c.version+1 ||
		change.OldStartLine < 0 ||
		change.OldStartLine > change.OldEndLine ||
		change.OldStartLine > change.NewEndLine ||
		change.OldEndLine >= oldCount ||
		change.NewEndLine >= newCount ||
		oldCount+delta != newCount {
		c.log.Debug("change does not match cached document, reclassifying",
			"version", snap.Version(), "cachedLines", oldCount, "lines", newCount)
		return c.reset(snap)
	}

	// Unstable lines before the edit move the start back; those after it
	// must be passed before the pass may converge.
	first := change.OldStartLine
	reach := change.NewEndLine
	for _, u := range c.unstable {
		switch {
		case u < change.OldStartLine:
			first = min(first, u)
		case u > change.OldEndLine:
			reach = max(reach, u+delta)
		}
	}
	c.unstable = nil
	st := c.starts[first]

	relexed := make([][]lexer.Token, 0, reach-first+1)
	states := make([]lexer.State, 0, reach-first+1)

	convergedAt := -1
	line := first
	for line < newCount {
		toks, end := c.scan(line, snap.Line(line), st)
		relexed = append(relexed, toks)
		states = append(states, end)
		line++

		// line is now the boundary after the scanned line. Only
		// boundaries past the edited region may be compared.
		if line > reach && end == c.starts[line-delta] {
			convergedAt = line
			break
		}
		st = end
	}

	tokens := make([][]lexer.Token, 0, newCount)
	tokens = append(tokens, c.tokens[:first]...)
	tokens = append(tokens, relexed...)

	starts := make([]lexer.State, 0, newCount+1)
	starts = append(starts, c.starts[:first+1]...)
	starts = append(starts, states...)

	if convergedAt >= 0 {
		tokens = append(tokens, c.tokens[convergedAt-delta:]...)
		starts = append(starts, c.starts[convergedAt-delta+1:]...)
	}

	c.tokens = tokens
	c.starts = starts
	c.version = snap.Version()

	c.stats.Passes++
	c.stats.RelexedLines += uint64(len(relexed))
	converged := convergedAt >= 0 && convergedAt < newCount
	if converged {
		c.stats.Convergences++
	}

	last := first + len(relexed) - 1
	if !converged {
		convergedAt = -1
	}
	return Result{
		Version:     c.version,
		FirstLine:   first,
		LastLine:    last,
		Converged:   converged,
		ConvergedAt: convergedAt,
		Relexed:     len(relexed),
		Spans:       c.spansLocked(first, last+1),
	}
}

// scan lexes one line and records it when the result is unstable.
func (c *Classifier) scan(line int, src string, st lexer.State) ([]lexer.Token, lexer.State) {
	toks, end, stable := lexer.ScanLine(c.lx, src, st)
	if !stable {
		c.unstable = append(c.unstable, line)
		c.stats.Unstable++
		c.log.Warning("unstable scan, line will be re-lexed", "line", line, "language", c.lx.Language())
	}
	return toks, end
}

// Unstable returns the lines whose cached classification is a placeholder
// from an unstable scan. The next Classify re-lexes them.
func (c *Classifier) Unstable() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.unstable...)
}

// Spans returns the cached classification of lines [startLine, endLine).
// The range is clamped to the document. Whitespace between tokens has no
// span.
func (c *Classifier) Spans(startLine, endLine int) []Span {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spansLocked(startLine, endLine)
}

// VersionedSpans is Spans together with the document version the spans
// describe.
func (c *Classifier) VersionedSpans(startLine, endLine int) ([]Span, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spansLocked(startLine, endLine), c.version
}

func (c *Classifier) spansLocked(startLine, endLine int) []Span {
	if startLine < 0 {
		startLine = 0
	}
	if endLine > len(c.tokens) {
		endLine = len(c.tokens)
	}
	var spans []Span
	for line := startLine; line < endLine; line++ {
		for _, t := range c.tokens[line] {
			spans = append(spans, Span{Line: line, Start: t.Start, End: t.End, Kind: t.Kind})
		}
	}
	return spans
}

// Tokens returns the cached tokens of one line.
func (c *Classifier) Tokens(line int) []lexer.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if line < 0 || line >= len(c.tokens) {
		return nil
	}
	out := make([]lexer.Token, len(c.tokens[line]))
	copy(out, c.tokens[line])
	return out
}

// StateAt returns the cached state at the start of line. line may equal
// LineCount, which yields the end-of-document state.
func (c *Classifier) StateAt(line int) (lexer.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if line < 0 || line >= len(c.starts) {
		return lexer.State{}, false
	}
	return c.starts[line], true
}

// LineCount returns the number of lines the cache describes.
func (c *Classifier) LineCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// Version returns the version of the last classified snapshot.
func (c *Classifier) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Stats returns cumulative counters.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
