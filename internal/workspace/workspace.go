// Package workspace owns the per-document language services: for every
// open document it creates a buffer, a classifier and a background parse
// scheduler, wires the buffer's change stream into both, and disposes of
// them when the document is closed.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
	"github.com/dshills/lexwork/internal/tracing"
)

// FallbackLanguage is used when no registered language matches.
const FallbackLanguage = "template"

// ParserFactory builds the parser for a document from a lexer dedicated
// to that parser.
type ParserFactory func(lx lexer.Lexer) parse.Parser

// Option configures a Workspace.
type Option func(*Workspace)

// WithRegistry sets the language registry.
func WithRegistry(r *highlight.Registry) Option {
	return func(w *Workspace) {
		w.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(w *Workspace) {
		w.log = l
	}
}

// WithTracer sets the tracer handed to every scheduler.
func WithTracer(t trace.Tracer) Option {
	return func(w *Workspace) {
		w.tracer = t
	}
}

// WithDebounce sets the parse debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Workspace) {
		w.debounce = d
	}
}

// WithResultCacheTTL enables the per-document parse result cache.
func WithResultCacheTTL(ttl time.Duration) Option {
	return func(w *Workspace) {
		w.cacheTTL = ttl
	}
}

// WithParserFactory replaces the default structure parser.
func WithParserFactory(f ParserFactory) Option {
	return func(w *Workspace) {
		w.newParser = f
	}
}

// Workspace holds the open documents.
type Workspace struct {
	registry  *highlight.Registry
	log       commonlog.Logger
	tracer    trace.Tracer
	debounce  time.Duration
	cacheTTL  time.Duration
	newParser ParserFactory

	mu     sync.Mutex
	docs   map[string]*Document
	closed bool
}

// New creates an empty workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		registry: highlight.DefaultRegistry(),
		log:      logging.Get("workspace"),
		tracer:   tracing.Noop(),
		debounce: background.DefaultDelay,
		newParser: func(lx lexer.Lexer) parse.Parser {
			return parse.NewStructureParser(lx)
		},
		docs: make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open creates the language services for uri and starts an initial parse.
// language may be empty, in which case it is derived from the extension
// of uri.
func (w *Workspace) Open(uri, language, content string) (*Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if _, ok := w.docs[uri]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentAlreadyOpen, uri)
	}

	lang, err := w.registry.Resolve(language, uri)
	if err != nil {
		fallback, ok := w.registry.ByName(FallbackLanguage)
		if !ok {
			return nil, err
		}
		w.log.Debug("unknown language, using fallback", "uri", uri, "language", language)
		lang = fallback
	}

	doc, err := w.newDocument(uri, lang, content)
	if err != nil {
		return nil, err
	}
	w.docs[uri] = doc
	w.log.Info("document opened", "uri", uri, "language", lang.Name, "lines", doc.buf.Snapshot().LineCount())
	return doc, nil
}

func (w *Workspace) newDocument(uri string, lang highlight.Language, content string) (*Document, error) {
	classifyLexer, err := lang.NewLexer()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	parseLexer, err := lang.NewLexer()
	if err != nil {
		closeLexer(classifyLexer)
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}

	opts := []background.Option{
		background.WithDelay(w.debounce),
		background.WithLogger(logging.Get("background")),
		background.WithTracer(w.tracer),
		background.WithLabel(uri),
	}
	if w.cacheTTL > 0 {
		opts = append(opts, background.WithResultCache(w.cacheTTL))
	}

	d := &Document{
		uri:        uri,
		language:   lang.Name,
		buf:        text.NewBuffer(content),
		classifier: highlight.New(classifyLexer, highlight.WithLogger(logging.Get("highlight"))),
		scheduler:  background.New(w.newParser(parseLexer), opts...),
		lexers:     []lexer.Lexer{classifyLexer, parseLexer},
	}

	snap := d.buf.Snapshot()
	d.classifier.Reset(snap)
	d.unsubscribe = d.buf.Subscribe(d.onChange)

	if err := d.scheduler.NotifyEdit(snap); err != nil {
		d.close()
		return nil, err
	}
	if err := d.scheduler.Request(false); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

// Get returns the open document for uri.
func (w *Workspace) Get(uri string) (*Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[uri]
	return d, ok
}

// Documents returns the URIs of all open documents, sorted.
func (w *Workspace) Documents() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	uris := make([]string, 0, len(w.docs))
	for u := range w.docs {
		uris = append(uris, u)
	}
	sort.Strings(uris)
	return uris
}

// Close disposes of the services for uri.
func (w *Workspace) Close(uri string) error {
	w.mu.Lock()
	d, ok := w.docs[uri]
	delete(w.docs, uri)
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
	}
	w.log.Info("document closed", "uri", uri)
	return d.close()
}

// CloseAll closes every document and rejects later Open calls.
func (w *Workspace) CloseAll() error {
	w.mu.Lock()
	docs := w.docs
	w.docs = make(map[string]*Document)
	w.closed = true
	w.mu.Unlock()

	var errs []error
	for _, d := range docs {
		errs = append(errs, d.close())
	}
	return errors.Join(errs...)
}

func closeLexer(lx lexer.Lexer) error {
	if c, ok := lx.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
