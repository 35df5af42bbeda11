// Package background schedules parses of a buffer off the editing path.
//
// A Scheduler debounces edit notifications, runs at most one owned parse
// request at a time on its own goroutine, cancels superseded requests and
// publishes each successful result exactly once per settled burst of
// edits. Results whose version was overtaken while they were computed are
// dropped without notice.
//
//	Idle ──edit──▶ Debouncing ──timer──▶ Parsing ──done──▶ Completed ──▶ Idle
//	                  ▲   │edit                │edit
//	                  └───┘◀───────────────────┘
//
// Parser failures and panics are delivered as a Failure event and the
// scheduler returns to Idle; the next edit retries.
package background
