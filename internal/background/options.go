package background

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDelay is the debounce window used when none is configured.
const DefaultDelay = 300 * time.Millisecond

// Timer is a pending timer that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock schedules the debounce timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay sets the debounce window. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l commonlog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithTracer records a span for every dispatched request.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = t
	}
}

// WithResultCache reuses parser output for identical text for ttl.
// Undoing an edit then yields the earlier output without reparsing.
func WithResultCache(ttl time.Duration) Option {
	return func(s *Scheduler) {
		if ttl > 0 {
			s.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithClock replaces the timer source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLabel names the buffer in logs and spans.
func WithLabel(label string) Option {
	return func(s *Scheduler) {
		s.label = label
	}
}
