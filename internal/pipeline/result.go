package pipeline

import (
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/highlight"
)

// Outcome is what happened to a frame handed to ProcessFrame.
type Outcome int

const (
	// OutcomeProcessed frames went through every stage and were committed.
	OutcomeProcessed Outcome = iota
	// OutcomeThrottled frames arrived before the target interval elapsed
	// and had no effect.
	OutcomeThrottled
	// OutcomeSkipped frames carried a detection that could not be normalized.
	OutcomeSkipped
	// OutcomeDiscarded frames were abandoned mid-flight (cancellation, close,
	// scan toggle or configuration change) without committing any state.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// FrameResult describes the synchronous result of one ProcessFrame call.
// The same data reaches the Sink asynchronously.
type FrameResult struct {
	Outcome Outcome `json:"outcome"`
	// Detections that survived normalization, the type filter and the region filter.
	Detections []barcode.Detection `json:"detections,omitempty"`
	// Action taken by the scan gate.
	Action gate.Action `json:"-"`
	// Emitted is set when a scan event was dispatched.
	Emitted bool `json:"emitted"`
	// Cleared is set when a cleared event was dispatched.
	Cleared bool `json:"cleared"`
	// Highlights is the current overlay, valid when HighlightsUpdated is set.
	Highlights        []highlight.Highlight `json:"highlights,omitempty"`
	HighlightsUpdated bool                  `json:"highlights_updated"`
	Duration          time.Duration         `json:"duration_ns"`
}
