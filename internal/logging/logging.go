// Package logging configures the process-wide commonlog backend and hands
// out named loggers for each component.
package logging

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple" // registers the default backend
)

// Root is the name prefix shared by every component logger.
const Root = "lexwork"

// Level represents the minimum severity that is written.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
	// LevelOff disables logging.
	LevelOff
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name. Matching is case-insensitive and
// accepts "warning" for LevelWarn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none", "quiet":
		return LevelOff, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Verbosity maps the level onto commonlog's verbosity scale.
func (l Level) Verbosity() int {
	switch l {
	case LevelDebug:
		return 2
	case LevelInfo:
		return 1
	case LevelWarn:
		return -1
	case LevelError:
		return -2
	default:
		return -4
	}
}

// Configure sets the level and destination of all loggers. An empty path
// logs to stderr, which keeps stdout free for the LSP transport.
func Configure(level Level, path string) {
	if path == "" {
		commonlog.Configure(level.Verbosity(), nil)
		return
	}
	commonlog.Configure(level.Verbosity(), &path)
}

// Get returns the logger for a component, named "lexwork.<component>".
func Get(component string) commonlog.Logger {
	if component == "" {
		return commonlog.GetLogger(Root)
	}
	return commonlog.GetLogger(Root + "." + component)
}

// Discard returns a logger that drops everything.
func Discard() commonlog.Logger {
	return commonlog.MockLogger{}
}
