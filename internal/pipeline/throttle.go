package pipeline

import "time"

// throttle admits frames at most once per interval of frame timestamps.
// It is owned by the frame path.
type throttle struct {
	interval time.Duration
	last     time.Duration
	started  bool
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

// allow reports whether a frame stamped ts may be processed. The first
// frame always passes. A timestamp earlier than the last processed one is
// treated as a restarted clock and passes.
func (t *throttle) allow(ts time.Duration) bool {
	if !t.started {
		return true
	}
	delta := ts - t.last
	return delta < 0 || delta >= t.interval
}

// mark records ts as the last processed frame.
func (t *throttle) mark(ts time.Duration) {
	t.last = ts
	t.started = true
}

func (t *throttle) reset(interval time.Duration) {
	t.interval = interval
	t.started = false
	t.last = 0
}
