package background

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
)

const waitFor = 2 * time.Second

// manualClock fires timers only when told to.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) pending() []*manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// Fire runs every pending timer and returns how many fired.
func (c *manualClock) Fire() int {
	ts := c.pending()
	c.mu.Lock()
	for _, t := range ts {
		t.fired = true
	}
	c.mu.Unlock()
	for _, t := range ts {
		t.f()
	}
	return len(ts)
}

// gateParser blocks every parse until released.
type gateParser struct {
	started      chan uint64
	release      chan struct{}
	ignoreCancel bool

	mu    sync.Mutex
	calls []uint64
	fail  error
}

func newGateParser() *gateParser {
	return &gateParser{
		started: make(chan uint64, 64),
		release: make(chan struct{}, 64),
	}
}

func (p *gateParser) Parse(ctx context.Context, snap *text.Snapshot) (parse.Output, error) {
	p.mu.Lock()
	p.calls = append(p.calls, snap.Version())
	fail := p.fail
	p.mu.Unlock()

	p.started <- snap.Version()
	if p.ignoreCancel {
		<-p.release
	} else {
		select {
		case <-p.release:
		case <-ctx.Done():
			return parse.Output{}, ctx.Err()
		}
	}
	if fail != nil {
		return parse.Output{}, fail
	}
	return parse.Output{Tree: snap.Text()}, nil
}

func (p *gateParser) Calls() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.calls...)
}

func (p *gateParser) waitStarted(t *testing.T) uint64 {
	t.Helper()
	select {
	case v := <-p.started:
		return v
	case <-time.After(waitFor):
		t.Fatal("parse did not start")
		return 0
	}
}

// recorder collects delivered events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count() int {
	return len(r.Events())
}

func snap(content string, v uint64) *text.Snapshot {
	return text.NewSnapshot(content, v)
}

func newTestScheduler(p parse.Parser, opts ...Option) (*Scheduler, *manualClock, *recorder) {
	clock := &manualClock{}
	opts = append([]Option{WithClock(clock), WithLogger(logging.Discard())}, opts...)
	s := New(p, opts...)
	rec := &recorder{}
	s.Subscribe(rec.record)
	return s, clock, rec
}

func TestDebounceCoalescesBurst(t *testing.T) {
	p := newGateParser()
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	assert.Equal(t, StateIdle, s.State())
	require.NoError(t, s.NotifyEdit(snap("a", 2)))
	require.NoError(t, s.NotifyEdit(snap("ab", 3)))
	require.NoError(t, s.NotifyEdit(snap("abc", 4)))
	assert.Equal(t, StateDebouncing, s.State())
	assert.Len(t, clock.pending(), 1, "earlier timers must be stopped")

	require.Equal(t, 1, clock.Fire())
	assert.Equal(t, uint64(4), p.waitStarted(t))
	assert.Equal(t, StateParsing, s.State())

	p.release <- struct{}{}
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, waitFor, time.Millisecond)

	ev := rec.Events()[0]
	assert.Equal(t, uint64(4), ev.Version)
	require.NotNil(t, ev.Result)
	assert.Nil(t, ev.Failure)
	assert.Equal(t, "abc", ev.Result.Tree())
	assert.Equal(t, []uint64{4}, p.Calls())
	assert.Equal(t, uint64(1), s.Stats().Dispatched)
	assert.Same(t, ev.Result, s.Latest())
}

func TestEditDuringParseDiscardsResult(t *testing.T) {
	p := newGateParser()
	p.ignoreCancel = true
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	require.NoError(t, s.NotifyEdit(snap("one", 2)))
	clock.Fire()
	require.Equal(t, uint64(2), p.waitStarted(t))

	require.NoError(t, s.NotifyEdit(snap("two", 3)))
	assert.Equal(t, StateDebouncing, s.State())
	assert.Equal(t, uint64(1), s.Stats().Cancelled)

	// The superseded parse finishes anyway.
	p.release <- struct{}{}
	require.Eventually(t, func() bool { return s.Stats().Stale == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Nil(t, s.Latest())
	assert.Equal(t, StateDebouncing, s.State())

	require.Equal(t, 1, clock.Fire())
	require.Equal(t, uint64(3), p.waitStarted(t))
	p.release <- struct{}{}
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, uint64(3), rec.Events()[0].Version)
}

func TestCancelledParseIsNotPublished(t *testing.T) {
	p := newGateParser()
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	require.NoError(t, s.NotifyEdit(snap("one", 2)))
	clock.Fire()
	p.waitStarted(t)
	require.NoError(t, s.NotifyEdit(snap("two", 3)))

	// The parser honours cancellation and returns ctx.Err().
	require.Eventually(t, func() bool { return s.Stats().Stale == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, uint64(0), s.Stats().Failed)
}

func TestParserFailurePublishesFailure(t *testing.T) {
	p := newGateParser()
	p.fail = errors.New("grammar exploded")
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	require.NoError(t, s.NotifyEdit(snap("x", 2)))
	clock.Fire()
	p.waitStarted(t)
	p.release <- struct{}{}

	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	ev := rec.Events()[0]
	require.NotNil(t, ev.Failure)
	assert.Nil(t, ev.Result)
	assert.ErrorIs(t, ev.Failure, p.fail)
	assert.Equal(t, uint64(2), ev.Failure.Version)
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Latest())

	// The next edit retries.
	p.mu.Lock()
	p.fail = nil
	p.mu.Unlock()
	require.NoError(t, s.NotifyEdit(snap("xy", 3)))
	clock.Fire()
	p.waitStarted(t)
	p.release <- struct{}{}
	require.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, time.Millisecond)
	assert.NotNil(t, rec.Events()[1].Result)
}

func TestParserPanicPublishesFailure(t *testing.T) {
	p := parse.ParserFunc(func(context.Context, *text.Snapshot) (parse.Output, error) {
		panic("nil grammar")
	})
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	require.NoError(t, s.NotifyEdit(snap("x", 2)))
	clock.Fire()
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)

	var ie *parse.InternalError
	require.ErrorAs(t, rec.Events()[0].Failure, &ie)
	assert.Equal(t, "nil grammar", ie.Value)
}

func TestOldNotificationsIgnored(t *testing.T) {
	s, clock, _ := newTestScheduler(newGateParser())
	defer s.Close()

	require.NoError(t, s.NotifyEdit(snap("b", 3)))
	require.NoError(t, s.NotifyEdit(snap("a", 2)))
	require.NoError(t, s.NotifyEdit(snap("b", 3)))
	assert.Equal(t, uint64(2), s.Stats().Ignored)
	assert.Equal(t, uint64(1), s.Stats().Notified)
	assert.Len(t, clock.pending(), 1)
}

func TestRequest(t *testing.T) {
	p := newGateParser()
	s, clock, rec := newTestScheduler(p)
	defer s.Close()

	require.NoError(t, s.Request(false), "nothing to parse yet")
	assert.Equal(t, uint64(0), s.Stats().Dispatched)

	require.NoError(t, s.NotifyEdit(snap("x", 1)))
	require.NoError(t, s.Request(false))
	assert.Empty(t, clock.pending(), "request skips the debounce window")
	p.waitStarted(t)
	require.NoError(t, s.Request(false), "already parsing this version")
	assert.Equal(t, uint64(1), s.Stats().Dispatched)

	p.release <- struct{}{}
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)

	require.NoError(t, s.Request(false), "already published")
	assert.Equal(t, uint64(1), s.Stats().Dispatched)

	require.NoError(t, s.Request(true))
	p.waitStarted(t)
	p.release <- struct{}{}
	require.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, uint64(1), rec.Events()[1].Version)
	assert.NotEqual(t, rec.Events()[0].Result.RequestID(), rec.Events()[1].Result.RequestID())
}

func TestCloseCancelsAndDropsCompletion(t *testing.T) {
	p := newGateParser()
	p.ignoreCancel = true
	s, clock, rec := newTestScheduler(p)

	require.NoError(t, s.NotifyEdit(snap("x", 2)))
	clock.Fire()
	p.waitStarted(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.NotifyEdit(snap("y", 3)), ErrClosed)
	assert.ErrorIs(t, s.Request(true), ErrClosed)

	p.release <- struct{}{}
	require.Eventually(t, func() bool { return s.Stats().Stale == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestCloseStopsPendingTimer(t *testing.T) {
	p := newGateParser()
	s, clock, _ := newTestScheduler(p)

	require.NoError(t, s.NotifyEdit(snap("x", 2)))
	require.NoError(t, s.Close())
	assert.Empty(t, clock.pending())
	assert.Empty(t, p.Calls())
}

func TestResultCacheReusesOutput(t *testing.T) {
	p := newGateParser()
	s, clock, rec := newTestScheduler(p, WithResultCache(time.Minute))
	defer s.Close()

	step := func(content string, v uint64, parsed bool) {
		require.NoError(t, s.NotifyEdit(snap(content, v)))
		clock.Fire()
		if parsed {
			p.waitStarted(t)
			p.release <- struct{}{}
		}
		require.Eventually(t, func() bool {
			l := s.Latest()
			return l != nil && l.Version() == v
		}, waitFor, time.Millisecond)
	}
	step("abc", 2, true)
	step("abcd", 3, true)
	step("abc", 4, false)

	assert.Equal(t, []uint64{2, 3}, p.Calls())
	assert.Equal(t, uint64(1), s.Stats().CacheHits)
	require.Eventually(t, func() bool { return rec.count() == 3 }, waitFor, time.Millisecond)
}

func TestSubscriberMayCallBack(t *testing.T) {
	p := newGateParser()
	s := New(p, WithClock(&manualClock{}), WithLogger(logging.Discard()))
	defer s.Close()

	seen := make(chan uint64, 4)
	var sub Subscription
	sub = s.Subscribe(func(ev Event) {
		seen <- s.Latest().Version()
		sub.Unsubscribe()
	})
	panicky := s.Subscribe(func(Event) { panic("subscriber bug") })
	defer panicky.Unsubscribe()

	require.NoError(t, s.NotifyEdit(snap("x", 2)))
	require.NoError(t, s.Request(false))
	p.waitStarted(t)
	p.release <- struct{}{}

	select {
	case v := <-seen:
		assert.Equal(t, uint64(2), v)
	case <-time.After(waitFor):
		t.Fatal("subscriber not called")
	}

	require.NoError(t, s.NotifyEdit(snap("xy", 3)))
	require.NoError(t, s.Request(false))
	p.waitStarted(t)
	p.release <- struct{}{}
	require.Eventually(t, func() bool { return s.Stats().Published == 2 }, waitFor, time.Millisecond)
	assert.Empty(t, seen, "unsubscribed callback must not run again")
}

// sleepyParser takes a random time and honours cancellation.
type sleepyParser struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (p *sleepyParser) Parse(ctx context.Context, snap *text.Snapshot) (parse.Output, error) {
	p.mu.Lock()
	d := time.Duration(p.rnd.Intn(3000)) * time.Microsecond
	p.mu.Unlock()
	select {
	case <-time.After(d):
		return parse.Output{}, nil
	case <-ctx.Done():
		return parse.Output{}, ctx.Err()
	}
}

func TestPublicationsAreMonotonic(t *testing.T) {
	p := &sleepyParser{rnd: rand.New(rand.NewSource(1))}
	s := New(p, WithDelay(500*time.Microsecond), WithLogger(logging.Discard()))
	defer s.Close()
	rec := &recorder{}
	s.Subscribe(rec.record)

	const edits = 200
	for v := uint64(1); v <= edits; v++ {
		require.NoError(t, s.NotifyEdit(snap("x", v)))
		if v%7 == 0 {
			require.NoError(t, s.Request(v%21 == 0))
		}
		time.Sleep(time.Duration(v%4) * 300 * time.Microsecond)
	}

	require.Eventually(t, func() bool {
		l := s.Latest()
		return l != nil && l.Version() == edits && s.State() == StateIdle
	}, 5*time.Second, time.Millisecond)

	var last uint64
	for _, ev := range rec.Events() {
		require.NotNil(t, ev.Result)
		require.GreaterOrEqual(t, ev.Version, last, "publication went backwards")
		last = ev.Version
	}
}
