// Package view is a read-only terminal viewer for one document. It draws
// the incremental classification and reports background parse results in
// a status line. When following a file, every rewrite on disk is turned
// into minimal edits so only the changed region is reclassified.
package view

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
	"github.com/tliron/commonlog"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/config/watcher"
	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/text"
	"github.com/dshills/lexwork/internal/workspace"
)

// DefaultTabWidth is the number of cells a tab advances to.
const DefaultTabWidth = 4

// Option configures a Viewer.
type Option func(*Viewer)

// WithTheme sets the color theme.
func WithTheme(t *highlight.Theme) Option {
	return func(v *Viewer) {
		if t != nil {
			v.theme = t
		}
	}
}

// WithTabWidth sets the tab width in cells.
func WithTabWidth(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.tabWidth = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(v *Viewer) {
		if l != nil {
			v.logger = l
		}
	}
}

// Viewer draws a document on a tcell screen.
type Viewer struct {
	screen   tcell.Screen
	doc      *workspace.Document
	path     string
	theme    *highlight.Theme
	tabWidth int
	logger   commonlog.Logger

	sub background.Subscription

	mu      sync.Mutex
	top     int
	message string
}

// New creates a viewer for doc. path is shown in the status line and used
// by Follow and Reload.
func New(screen tcell.Screen, doc *workspace.Document, path string, opts ...Option) *Viewer {
	v := &Viewer{
		screen:   screen,
		doc:      doc,
		path:     path,
		theme:    highlight.DefaultTheme(),
		tabWidth: DefaultTabWidth,
		logger:   logging.Get("view"),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.sub = doc.Subscribe(v.onParse)
	return v
}

// Close stops listening for parse events.
func (v *Viewer) Close() {
	v.sub.Unsubscribe()
}

func (v *Viewer) onParse(ev background.Event) {
	if ev.Failure != nil {
		v.setMessage(fmt.Sprintf("parse v%d failed: %v", ev.Version, ev.Failure.Err))
	} else {
		v.setMessage("")
	}
	v.redraw()
}

func (v *Viewer) setMessage(msg string) {
	v.mu.Lock()
	v.message = msg
	v.mu.Unlock()
}

// redraw asks the event loop to draw.
func (v *Viewer) redraw() {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// SetTheme replaces the theme and redraws.
func (v *Viewer) SetTheme(t *highlight.Theme) {
	if t == nil {
		return
	}
	v.mu.Lock()
	v.theme = t
	v.mu.Unlock()
	v.redraw()
}

func (v *Viewer) currentTheme() *highlight.Theme {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.theme
}

// Top returns the first visible line.
func (v *Viewer) Top() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

// Follow reloads the file whenever w reports a change to it.
func (v *Viewer) Follow(w *watcher.Watcher) error {
	abs, err := filepath.Abs(v.path)
	if err != nil {
		return err
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Path != abs {
			return
		}
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			v.setMessage("file removed")
			v.redraw()
			return
		}
		if err := v.Reload(); err != nil {
			v.logger.Warningf("reload %s: %v", v.path, err)
			v.setMessage(err.Error())
		}
		v.redraw()
	})
	return w.Watch(abs)
}

// Reload reads the file and applies the difference to the document.
func (v *Viewer) Reload() error {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return err
	}
	return v.Update(string(data))
}

// Update applies the difference between the document and content.
func (v *Viewer) Update(content string) error {
	old := v.doc.Snapshot().Text()
	edits := text.Diff(old, strings.ReplaceAll(content, "\r\n", "\n"))
	if len(edits) == 0 {
		return nil
	}
	if _, err := v.doc.Apply(edits...); err != nil {
		return err
	}
	res := v.doc.LastClassification()
	v.logger.Debugf("%d edits, relexed %d lines (%d-%d)", len(edits), res.Relexed, res.FirstLine, res.LastLine)
	return nil
}

// Run processes events until the user quits or the screen is finalized.
func (v *Viewer) Run() {
	v.Draw()
	for {
		switch ev := v.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			v.screen.Sync()
			v.Draw()
		case *tcell.EventKey:
			if v.HandleKey(ev) {
				return
			}
			v.Draw()
		case *tcell.EventInterrupt:
			v.Draw()
		}
	}
}

// HandleKey scrolls the view. It returns true when the viewer should quit.
func (v *Viewer) HandleKey(ev *tcell.EventKey) bool {
	_, height := v.screen.Size()
	page := max(height-2, 1)

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.scroll(-1)
	case tcell.KeyDown:
		v.scroll(1)
	case tcell.KeyPgUp:
		v.scroll(-page)
	case tcell.KeyPgDn:
		v.scroll(page)
	case tcell.KeyHome:
		v.scroll(-v.doc.Snapshot().LineCount())
	case tcell.KeyEnd:
		v.scroll(v.doc.Snapshot().LineCount())
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			v.scroll(-1)
		case 'j':
			v.scroll(1)
		case 'r':
			if err := v.doc.Reparse(true); err != nil {
				v.setMessage(err.Error())
			}
		}
	}
	return false
}

func (v *Viewer) scroll(delta int) {
	_, height := v.screen.Size()
	lines := v.doc.Snapshot().LineCount()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.top += delta
	if maxTop := lines - (height - 1); v.top > maxTop {
		v.top = maxTop
	}
	if v.top < 0 {
		v.top = 0
	}
}

// Draw renders the visible lines and the status line.
func (v *Viewer) Draw() {
	width, height := v.screen.Size()
	if height <= 0 {
		return
	}
	theme := v.currentTheme()
	v.screen.Clear()
	v.screen.Fill(' ', theme.Base)

	snap := v.doc.Snapshot()
	top := v.Top()
	rows := height - 1
	end := min(top+rows, snap.LineCount())

	spans := v.doc.Spans(top, end)
	for line := top; line < end; line++ {
		var lineSpans []highlight.Span
		for len(spans) > 0 && spans[0].Line == line {
			lineSpans = append(lineSpans, spans[0])
			spans = spans[1:]
		}
		v.drawLine(theme, line-top, width, snap.Line(line), lineSpans)
	}
	v.drawStatus(theme, height-1, width, snap)
	v.screen.Show()
}

func (v *Viewer) drawLine(theme *highlight.Theme, y, width int, line string, spans []highlight.Span) {
	x, offset, state := 0, 0, -1
	rest := line
	for len(rest) > 0 && x < width {
		var (
			cluster    string
			boundaries int
		)
		cluster, rest, boundaries, state = uniseg.StepString(rest, state)

		for len(spans) > 0 && spans[0].End <= offset {
			spans = spans[1:]
		}
		style := theme.Base
		if len(spans) > 0 && spans[0].Start <= offset {
			style = theme.Style(spans[0].Kind)
		}

		if cluster == "\t" {
			next := (x/v.tabWidth + 1) * v.tabWidth
			for ; x < next && x < width; x++ {
				v.screen.SetContent(x, y, ' ', nil, style)
			}
		} else {
			runes := []rune(cluster)
			v.screen.SetContent(x, y, runes[0], runes[1:], style)
			x += max(boundaries>>uniseg.ShiftWidth, 1)
		}
		offset += len(cluster)
	}
}

func (v *Viewer) drawStatus(theme *highlight.Theme, y, width int, snap *text.Snapshot) {
	v.mu.Lock()
	msg := v.message
	v.mu.Unlock()

	status := v.StatusText(snap)
	if msg != "" {
		status += "  " + msg
	}
	x := 0
	for _, r := range status {
		if x >= width {
			break
		}
		v.screen.SetContent(x, y, r, nil, theme.Status)
		x += max(uniseg.StringWidth(string(r)), 1)
	}
	for ; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, theme.Status)
	}
}

// StatusText describes the document and its parse state.
func (v *Viewer) StatusText(snap *text.Snapshot) string {
	parsed := "not parsed"
	if r := v.doc.LatestResult(); r != nil {
		parsed = fmt.Sprintf("%d errors @v%d", r.ErrorCount(), r.Version())
	}
	return fmt.Sprintf(" %s [%s] v%d %d lines | %s | %s",
		v.path, v.doc.Language(), snap.Version(), snap.LineCount(), v.doc.ParseState(), parsed)
}
