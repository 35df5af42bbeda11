package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
)

func newTestWorkspace(opts ...Option) *Workspace {
	opts = append([]Option{WithLogger(logging.Discard()), WithDebounce(time.Millisecond)}, opts...)
	return New(opts...)
}

func TestOpenParsesImmediately(t *testing.T) {
	w := newTestWorkspace(WithDebounce(time.Hour))
	defer w.CloseAll()

	doc, err := w.Open("file:///site/index.php", "", "<?php if ($a) { echo 1; } ?>")
	require.NoError(t, err)
	assert.Equal(t, "template", doc.Language())

	require.Eventually(t, func() bool { return doc.LatestResult() != nil }, 2*time.Second, time.Millisecond)
	res := doc.LatestResult()
	assert.Equal(t, doc.Version(), res.Version())
	assert.Zero(t, res.ErrorCount())
	assert.NotEmpty(t, doc.Spans(0, 1))
}

func TestOpenTwiceFails(t *testing.T) {
	w := newTestWorkspace()
	defer w.CloseAll()

	_, err := w.Open("a.go", "", "package a")
	require.NoError(t, err)
	_, err = w.Open("a.go", "", "package a")
	assert.ErrorIs(t, err, ErrDocumentAlreadyOpen)
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	w := newTestWorkspace()
	defer w.CloseAll()

	doc, err := w.Open("notes.txt", "", "plain")
	require.NoError(t, err)
	assert.Equal(t, FallbackLanguage, doc.Language())

	doc, err = w.Open("x.php", "go", "package x")
	require.NoError(t, err)
	assert.Equal(t, "go", doc.Language(), "explicit language wins over extension")
}

func TestEditsFlowToClassifierAndScheduler(t *testing.T) {
	w := newTestWorkspace()
	defer w.CloseAll()

	doc, err := w.Open("page.php", "", "<p>\n<?php $a = 1; ?>\n</p>")
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		versions []uint64
	)
	doc.Subscribe(func(ev background.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Result != nil {
			versions = append(versions, ev.Version)
		}
	})

	// Open a block comment: everything after it changes classification.
	snap, err := doc.Apply(text.NewInsert(text.Point{Line: 1, Column: 6}, "/*"))
	require.NoError(t, err)

	last := doc.LastClassification()
	assert.Equal(t, snap.Version(), last.Version)
	assert.False(t, last.Converged)

	spans := doc.Spans(2, 3)
	require.Len(t, spans, 1)
	assert.Equal(t, lexer.KindComment, spans[0].Kind)

	require.Eventually(t, func() bool {
		r := doc.LatestResult()
		return r != nil && r.Version() == snap.Version()
	}, 2*time.Second, time.Millisecond)
	assert.NotZero(t, doc.LatestResult().ErrorCount(), "unterminated comment is reported")

	_, err = doc.Replace("<p>ok</p>")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r := doc.LatestResult()
		return r != nil && r.Version() == doc.Version() && r.ErrorCount() == 0
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestCloseDisposesDocument(t *testing.T) {
	w := newTestWorkspace()
	doc, err := w.Open("a.lua", "", "local x = 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.lua"}, w.Documents())
	require.NoError(t, w.Close("a.lua"))
	_, ok := w.Get("a.lua")
	assert.False(t, ok)
	assert.Empty(t, w.Documents())
	assert.Equal(t, background.StateClosed, doc.ParseState())

	_, err = doc.Apply(text.NewInsert(text.Point{}, "x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Close("a.lua"), ErrDocumentNotOpen)

	require.NoError(t, w.CloseAll())
	_, err = w.Open("b.lua", "", "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParserFailureKeepsEditing(t *testing.T) {
	w := newTestWorkspace(WithParserFactory(func(lexer.Lexer) parse.Parser {
		return parse.ParserFunc(func(context.Context, *text.Snapshot) (parse.Output, error) {
			panic("grammar bug")
		})
	}))
	defer w.CloseAll()

	doc, err := w.Open("a.go", "", "package a")
	require.NoError(t, err)

	failures := make(chan *parse.Failure, 8)
	doc.Subscribe(func(ev background.Event) {
		if ev.Failure != nil {
			failures <- ev.Failure
		}
	})

	_, err = doc.Apply(text.NewInsert(text.Point{Line: 0, Column: 9}, "\nfunc f() {}"))
	require.NoError(t, err)
	assert.Len(t, doc.Spans(1, 2), 4)

	select {
	case f := <-failures:
		assert.Equal(t, doc.Version(), f.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure event")
	}
	assert.Nil(t, doc.LatestResult())
}

func TestScriptLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.lua")
	src := `
function scan(line, state)
  local toks = {}
  for s, e in line:gmatch("()%a+()") do
    toks[#toks+1] = {kind="keyword", s=s-1, e=e-1}
  end
  return toks, state
end
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	reg := highlight.DefaultRegistry()
	reg.RegisterScript("words", []string{".w"}, path)
	w := newTestWorkspace(WithRegistry(reg))
	defer w.CloseAll()

	doc, err := w.Open("doc.w", "", "one two")
	require.NoError(t, err)
	assert.Equal(t, "words", doc.Language())
	assert.Equal(t, []highlight.Span{
		{Line: 0, Start: 0, End: 3, Kind: lexer.KindKeyword},
		{Line: 0, Start: 4, End: 7, Kind: lexer.KindKeyword},
	}, doc.Spans(0, 1))
}
