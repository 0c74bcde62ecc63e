package pipeline

import (
	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/highlight"
)

// Sink receives a session's outputs. Its methods are called from the
// session's dispatcher goroutine, one at a time and in commit order, never
// from the goroutine calling ProcessFrame.
type Sink interface {
	// OnScanned is called with the surviving detections of an emitting frame.
	// The slice is never empty.
	OnScanned(detections []barcode.Detection, frame barcode.Frame)
	// OnCleared is called in once mode when the visible set becomes empty.
	OnCleared(frame barcode.Frame)
	// OnHighlights is called with the latest overlay shapes. Intermediate
	// sets may be skipped when the host falls behind.
	OnHighlights(highlights []highlight.Highlight)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are ignored.
type SinkFuncs struct {
	Scanned    func([]barcode.Detection, barcode.Frame)
	Cleared    func(barcode.Frame)
	Highlights func([]highlight.Highlight)
}

func (f SinkFuncs) OnScanned(ds []barcode.Detection, frame barcode.Frame) {
	if f.Scanned != nil {
		f.Scanned(ds, frame)
	}
}

func (f SinkFuncs) OnCleared(frame barcode.Frame) {
	if f.Cleared != nil {
		f.Cleared(frame)
	}
}

func (f SinkFuncs) OnHighlights(hs []highlight.Highlight) {
	if f.Highlights != nil {
		f.Highlights(hs)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) OnScanned([]barcode.Detection, barcode.Frame) {}
func (NopSink) OnCleared(barcode.Frame)                      {}
func (NopSink) OnHighlights([]highlight.Highlight)           {}
