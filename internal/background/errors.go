package background

import "errors"

// ErrClosed is returned by operations on a closed scheduler.
var ErrClosed = errors.New("scheduler closed")
