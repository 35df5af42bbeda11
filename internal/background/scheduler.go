package background

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/parse"
	"github.com/dshills/lexwork/internal/text"
	"github.com/dshills/lexwork/internal/tracing"
)

// State is the scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateParsing
	StateCompleted
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateParsing:
		return "parsing"
	case StateCompleted:
		return "completed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is delivered to subscribers. Exactly one of Result and Failure
// is set.
type Event struct {
	Version uint64
	Result  *parse.Result
	Failure *parse.Failure
}

// Stats are cumulative scheduler counters.
type Stats struct {
	// Notified counts accepted edit notifications.
	Notified uint64
	// Ignored counts notifications for versions already seen.
	Ignored uint64
	// Dispatched counts parse requests started.
	Dispatched uint64
	// Published counts results delivered to subscribers.
	Published uint64
	// Failed counts failure events delivered.
	Failed uint64
	// Stale counts completions dropped because they were superseded.
	Stale uint64
	// Cancelled counts requests whose cancellation was signalled.
	Cancelled uint64
	// CacheHits counts requests served from the result cache.
	CacheHits uint64
}

type request struct {
	id      uuid.UUID
	snap    *text.Snapshot
	cancel  context.CancelFunc
	span    trace.Span
	started time.Time
	force   bool
}

type subscriber struct {
	id uuid.UUID
	fn func(Event)
}

// Scheduler runs background parses for one buffer.
type Scheduler struct {
	parser parse.Parser
	delay  time.Duration
	clock  Clock
	log    commonlog.Logger
	tracer trace.Tracer
	cache  *cache.Cache
	label  string

	mu            sync.Mutex
	state         State
	latest        *text.Snapshot
	timer         Timer
	timerGen      uint64
	inflight      *request
	result        *parse.Result
	lastPublished uint64
	published     bool
	subs          []subscriber
	stats         Stats

	// queue holds events awaiting delivery, in publication order.
	queue      []pending
	delivering bool
}

type pending struct {
	ev   Event
	subs []subscriber
}

// New creates an idle scheduler for parser.
func New(parser parse.Parser, opts ...Option) *Scheduler {
	s := &Scheduler{
		parser: parser,
		delay:  DefaultDelay,
		clock:  realClock{},
		log:    logging.Get("background"),
		tracer: tracing.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyEdit records that the buffer now holds snap and (re)starts the
// debounce window. An in-flight parse is cancelled. Notifications for a
// version not newer than the last one seen are ignored.
func (s *Scheduler) NotifyEdit(snap *text.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrClosed
	}
	if s.latest != nil && snap.Version() <= s.latest.Version() {
		s.stats.Ignored++
		return nil
	}
	s.latest = snap
	s.stats.Notified++

	s.disownLocked()
	s.armLocked()
	return nil
}

// Request dispatches a parse of the latest snapshot without waiting for
// the debounce window. Without force it does nothing when a parse is
// already running or the latest version has been published. With force
// any in-flight request is replaced and the version is parsed again.
func (s *Scheduler) Request(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrClosed
	}
	if s.latest == nil {
		return nil
	}
	if !force {
		if s.inflight != nil && s.inflight.snap.Version() == s.latest.Version() {
			return nil
		}
		if s.published && s.latest.Version() <= s.lastPublished {
			return nil
		}
	}
	s.disownLocked()
	s.stopTimerLocked()
	s.dispatchLocked(force)
	return nil
}

// Subscribe registers fn for every future event. Events are delivered one
// at a time on the worker goroutine in publication order. fn may call
// back into the scheduler.
func (s *Scheduler) Subscribe(fn func(Event)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return Subscription{ID: id, s: s}
}

func (s *Scheduler) unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recently published result, or nil.
func (s *Scheduler) Latest() *parse.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Stats returns cumulative counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops the timer, cancels any in-flight request and drops all
// subscribers. Completions arriving afterwards are discarded.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.stopTimerLocked()
	s.disownLocked()
	s.state = StateClosed
	s.subs = nil
	return nil
}

// disownLocked cancels the owned request. Its completion will be stale.
func (s *Scheduler) disownLocked() {
	if s.inflight == nil {
		return
	}
	s.inflight.cancel()
	s.inflight = nil
	s.stats.Cancelled++
}

func (s *Scheduler) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) armLocked() {
	s.stopTimerLocked()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.fire(gen)
	})
	s.state = StateDebouncing
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A reset or stopped timer may still fire once.
	if gen != s.timerGen || s.state != StateDebouncing {
		return
	}
	s.timer = nil
	s.dispatchLocked(false)
}

func (s *Scheduler) dispatchLocked(force bool) {
	snap := s.latest
	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := s.tracer.Start(ctx, "parse.request", trace.WithAttributes(
		tracing.AttrVersion.Int64(int64(snap.Version())),
		tracing.AttrURI.String(s.label),
	))

	req := &request{
		id:      uuid.New(),
		snap:    snap,
		cancel:  cancel,
		span:    span,
		started: time.Now(),
		force:   force,
	}
	span.SetAttributes(tracing.AttrRequestID.String(req.id.String()))

	s.inflight = req
	s.state = StateParsing
	s.stats.Dispatched++
	s.log.Debug("dispatching parse", "buffer", s.label, "version", snap.Version(), "request", req.id.String(), "force", force)

	go s.run(ctx, req)
}

func (s *Scheduler) run(ctx context.Context, req *request) {
	var (
		out parse.Output
		err error
		key string
		hit bool
	)
	if s.cache != nil && !req.force {
		key = contentKey(req.snap)
		if v, ok := s.cache.Get(key); ok {
			out, hit = v.(parse.Output), true
		}
	}
	if !hit {
		out, err = parse.Run(ctx, s.parser, req.snap)
		if err == nil && s.cache != nil {
			if key == "" {
				key = contentKey(req.snap)
			}
			s.cache.Set(key, out, cache.DefaultExpiration)
		}
	}
	s.complete(req, out, err, hit)
}

func (s *Scheduler) complete(req *request, out parse.Output, err error, cacheHit bool) {
	version := req.snap.Version()
	d := time.Since(req.started)
	defer req.cancel()

	s.mu.Lock()

	if s.inflight != req || s.state == StateClosed ||
		version != s.latest.Version() ||
		(s.published && version < s.lastPublished) {
		s.stats.Stale++
		s.mu.Unlock()
		s.log.Debug("dropping stale parse", "buffer", s.label, "version", version, "request", req.id.String())
		endSpan(req.span, "stale", nil)
		return
	}
	s.inflight = nil

	if errors.Is(err, context.Canceled) {
		// Cancelled while still owned; nothing newer is pending.
		s.state = StateIdle
		s.mu.Unlock()
		endSpan(req.span, "cancelled", nil)
		return
	}

	var ev Event
	if err != nil {
		s.stats.Failed++
		s.state = StateIdle
		ev = Event{Version: version, Failure: &parse.Failure{Version: version, RequestID: req.id, Err: err}}
	} else {
		res := parse.NewResult(version, req.id, out, d)
		s.result = res
		s.lastPublished = version
		s.published = true
		s.state = StateCompleted
		s.stats.Published++
		if cacheHit {
			s.stats.CacheHits++
		}
		ev = Event{Version: version, Result: res}
	}
	s.queue = append(s.queue, pending{ev: ev, subs: append([]subscriber(nil), s.subs...)})
	drain := !s.delivering
	s.delivering = true
	s.mu.Unlock()

	if ev.Failure != nil {
		s.log.Error("parse failed", "buffer", s.label, "version", version, "error", err.Error())
		endSpan(req.span, "failed", err)
	} else {
		s.log.Debug("parse published", "buffer", s.label, "version", version, "errors", ev.Result.ErrorCount(), "duration", d.String())
		req.span.SetAttributes(tracing.AttrErrors.Int(ev.Result.ErrorCount()))
		endSpan(req.span, "published", nil)
	}
	if drain {
		s.drain()
	}
}

// drain delivers queued events in order until the queue is empty. Only one
// goroutine drains at a time; no lock is held while subscribers run.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		p := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		for _, sub := range p.subs {
			s.deliver(sub, p.ev)
		}

		if p.ev.Result != nil {
			s.mu.Lock()
			if s.state == StateCompleted && s.result == p.ev.Result {
				s.state = StateIdle
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) deliver(sub subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("subscriber panicked", "buffer", s.label, "subscription", sub.id.String(), "panic", fmt.Sprint(r))
		}
	}()
	sub.fn(ev)
}

func endSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(tracing.AttrOutcome.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func contentKey(snap *text.Snapshot) string {
	sum := sha256.Sum256([]byte(snap.Text()))
	return hex.EncodeToString(sum[:])
}

// Subscription identifies a registered subscriber.
type Subscription struct {
	ID uuid.UUID
	s  *Scheduler
}

// Unsubscribe removes the subscriber. Events already being delivered may
// still arrive.
func (sub Subscription) Unsubscribe() {
	if sub.s != nil {
		sub.s.unsubscribe(sub.ID)
	}
}
