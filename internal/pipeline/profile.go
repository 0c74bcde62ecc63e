package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats aggregates per-session counters. It is written by the frame path
// and may be read from any goroutine.
type Stats struct {
	Processed  atomic.Int64
	Throttled  atomic.Int64
	Skipped    atomic.Int64
	Discarded  atomic.Int64
	Scans      atomic.Int64
	Clears     atomic.Int64
	FrameTimeN atomic.Int64
}

func (s *Stats) record(res FrameResult) {
	switch res.Outcome {
	case OutcomeProcessed:
		s.Processed.Add(1)
		s.FrameTimeN.Add(int64(res.Duration))
	case OutcomeThrottled:
		s.Throttled.Add(1)
	case OutcomeSkipped:
		s.Skipped.Add(1)
	case OutcomeDiscarded:
		s.Discarded.Add(1)
	}
	if res.Emitted {
		s.Scans.Add(1)
	}
	if res.Cleared {
		s.Clears.Add(1)
	}
}

// Snapshot returns cumulative counters, with frame time in microseconds.
func (s *Stats) Snapshot() map[string]any {
	processed := s.Processed.Load()
	ns := s.FrameTimeN.Load()
	out := map[string]any{
		"processed": processed,
		"throttled": s.Throttled.Load(),
		"skipped":   s.Skipped.Load(),
		"discarded": s.Discarded.Load(),
		"scans":     s.Scans.Load(),
		"clears":    s.Clears.Load(),
	}
	if processed > 0 {
		out["frame_us_avg"] = float64(ns) / float64(time.Microsecond) / float64(processed)
	}
	return out
}
