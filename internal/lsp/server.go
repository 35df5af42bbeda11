package lsp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/text"
	"github.com/dshills/lexwork/internal/workspace"
)

const lsName = "lexwork"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebug enables JSON-RPC message logging.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// openDocument tracks the client's version numbers for one document.
type openDocument struct {
	doc *workspace.Document
	sub background.Subscription

	mu sync.Mutex
	// versions maps buffer versions to client versions. Entries older than
	// the last published version are pruned.
	versions map[uint64]protocol.Integer
}

func (o *openDocument) record(bufVersion uint64, clientVersion protocol.Integer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.versions[bufVersion] = clientVersion
}

func (o *openDocument) clientVersion(bufVersion uint64) (protocol.Integer, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.versions[bufVersion]
	for bv := range o.versions {
		if bv < bufVersion {
			delete(o.versions, bv)
		}
	}
	return v, ok
}

// Server is a language server backed by a workspace.
type Server struct {
	version string
	ws      *workspace.Workspace
	logger  commonlog.Logger
	debug   bool

	handler protocol.Handler

	mu     sync.Mutex
	notify glsp.NotifyFunc
	docs   map[string]*openDocument
}

// New creates a server over ws. version is reported to clients.
func New(ws *workspace.Workspace, version string, opts ...Option) *Server {
	s := &Server{
		version: version,
		ws:      ws,
		logger:  logging.Get("lsp"),
		docs:    make(map[string]*openDocument),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = protocol.Handler{
		Initialize:                     s.initialize,
		Initialized:                    s.initialized,
		Shutdown:                       s.shutdown,
		SetTrace:                       s.setTrace,
		TextDocumentDidOpen:            s.didOpen,
		TextDocumentDidChange:          s.didChange,
		TextDocumentDidSave:            s.didSave,
		TextDocumentDidClose:           s.didClose,
		TextDocumentSemanticTokensFull: s.semanticTokensFull,
	}
	return s
}

// RunStdio serves one client over stdin and stdout.
func (s *Server) RunStdio() error {
	return server.NewServer(&s.handler, lsName, s.debug).RunStdio()
}

// RunTCP serves clients connecting to address.
func (s *Server) RunTCP(address string) error {
	return server.NewServer(&s.handler, lsName, s.debug).RunTCP(address)
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.setNotify(ctx)

	capabilities := s.handler.CreateServerCapabilities()
	change := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &change,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}
	capabilities.SemanticTokensProvider = &protocol.SemanticTokensOptions{
		Legend: Legend(),
		Full:   true,
	}

	if params.ClientInfo != nil {
		s.logger.Infof("client %s connected", params.ClientInfo.Name)
	}
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.mu.Lock()
	s.docs = make(map[string]*openDocument)
	s.mu.Unlock()
	return s.ws.CloseAll()
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) setNotify(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	s.mu.Lock()
	s.notify = ctx.Notify
	s.mu.Unlock()
}

func (s *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.setNotify(ctx)
	item := params.TextDocument

	doc, err := s.ws.Open(item.URI, languageFor(item.LanguageID), item.Text)
	if err != nil {
		return fmt.Errorf("open %s: %w", item.URI, err)
	}
	od := &openDocument{doc: doc, versions: make(map[uint64]protocol.Integer)}
	od.record(doc.Version(), item.Version)
	od.sub = doc.Subscribe(func(ev background.Event) { s.onParse(item.URI, od, ev) })

	s.mu.Lock()
	s.docs[item.URI] = od
	s.mu.Unlock()

	// The first parse may have been published before the subscription.
	if r := doc.LatestResult(); r != nil {
		s.onParse(item.URI, od, background.Event{Version: r.Version(), Result: r})
	}

	s.logger.Debugf("opened %s as %s", item.URI, doc.Language())
	return nil
}

func (s *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	od, err := s.lookup(params.TextDocument.URI)
	if err != nil {
		return err
	}

	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			snap := od.doc.Snapshot()
			r := toTextRange(snap, *change.Range)
			if _, err := od.doc.Apply(text.NewEdit(r, change.Text)); err != nil {
				return fmt.Errorf("apply change to %s: %w", params.TextDocument.URI, err)
			}
		case protocol.TextDocumentContentChangeEventWhole:
			if _, err := od.doc.Replace(change.Text); err != nil {
				return fmt.Errorf("replace %s: %w", params.TextDocument.URI, err)
			}
		default:
			return fmt.Errorf("unsupported content change %T", raw)
		}
	}
	od.record(od.doc.Version(), params.TextDocument.Version)
	return nil
}

func (s *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	od, err := s.lookup(params.TextDocument.URI)
	if err != nil {
		return err
	}
	return od.doc.Reparse(true)
}

func (s *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.mu.Lock()
	od, ok := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()
	if ok {
		od.sub.Unsubscribe()
	}

	if err := s.ws.Close(uri); err != nil {
		return err
	}
	// Clear diagnostics for the closed document.
	s.publish(uri, nil, nil)
	return nil
}

func (s *Server) semanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	od, err := s.lookup(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	// Spans and snapshot must describe the same version; an edit landing in
	// between is retried.
	for {
		snap := od.doc.Snapshot()
		spans, version := od.doc.VersionedSpans(0, snap.LineCount())
		if version == snap.Version() {
			return &protocol.SemanticTokens{Data: EncodeSemanticTokens(snap, spans)}, nil
		}
	}
}

// onParse runs on the scheduler's delivery goroutine.
func (s *Server) onParse(uri string, od *openDocument, ev background.Event) {
	if ev.Failure != nil {
		s.logger.Warningf("parse of %s v%d failed, keeping previous diagnostics: %v", uri, ev.Version, ev.Failure.Err)
		return
	}

	s.mu.Lock()
	current := s.docs[uri] == od
	s.mu.Unlock()
	if !current {
		return
	}

	snap := od.doc.Snapshot()
	if snap.Version() != ev.Version {
		s.logger.Debugf("dropping diagnostics for %s v%d, document is at v%d", uri, ev.Version, snap.Version())
		return
	}

	var version *protocol.UInteger
	if cv, ok := od.clientVersion(ev.Version); ok {
		v := protocol.UInteger(cv)
		version = &v
	}
	s.publish(uri, version, Diagnostics(snap, ev.Result.Errors()))
}

func (s *Server) publish(uri string, version *protocol.UInteger, diags []protocol.Diagnostic) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify == nil {
		return
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diags,
	})
}

func (s *Server) lookup(uri string) (*openDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%s: %w", uri, workspace.ErrDocumentNotOpen)
	}
	return od, nil
}

// languageFor maps LSP language identifiers to registry names. Unknown
// identifiers are passed through; the workspace falls back by extension.
func languageFor(id string) string {
	switch strings.ToLower(id) {
	case "php", "html", "phtml":
		return "template"
	case "plaintext":
		return ""
	}
	return strings.ToLower(id)
}

func boolPtr(b bool) *bool {
	return &b
}
