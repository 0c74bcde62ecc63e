package pipeline

import (
	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
)

// Builder constructs a Session with fluent configuration.
type Builder struct {
	cfg    Config
	sink   Sink
	layout geometry.Size
}

// NewBuilder creates a new session builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg.clone()
	return b
}

// WithCodeTypes restricts matches to the given types. No types lifts the restriction.
func (b *Builder) WithCodeTypes(types ...barcode.CodeType) *Builder {
	b.cfg.CodeTypes = types
	return b
}

// WithRegionOfInterest sets the region of interest in view pixels; nil clears it.
func (b *Builder) WithRegionOfInterest(roi *geometry.Rect) *Builder {
	if roi == nil {
		b.cfg.RegionOfInterest = nil
		return b
	}
	r := *roi
	b.cfg.RegionOfInterest = &r
	return b
}

// WithScanMode sets continuous or once scanning.
func (b *Builder) WithScanMode(mode gate.Mode) *Builder {
	b.cfg.ScanMode = mode
	return b
}

// WithTargetFPS sets the frame sampling rate.
func (b *Builder) WithTargetFPS(fps float64) *Builder {
	b.cfg.TargetFPS = fps
	return b
}

// WithScanEnabled sets the initial scan toggle.
func (b *Builder) WithScanEnabled(enabled bool) *Builder {
	b.cfg.ScanEnabled = enabled
	return b
}

// WithScaleMode sets contain or cover scaling.
func (b *Builder) WithScaleMode(mode mapping.ScaleMode) *Builder {
	b.cfg.ScaleMode = mode
	return b
}

// WithHighlighting enables or disables highlight projection.
func (b *Builder) WithHighlighting(enabled bool) *Builder {
	b.cfg.HighlightingEnabled = enabled
	return b
}

// WithPlatform selects the rotation table.
func (b *Builder) WithPlatform(p mapping.Platform) *Builder {
	b.cfg.Platform = p
	return b
}

// WithEventBuffer bounds undelivered scan events (if >0).
func (b *Builder) WithEventBuffer(n int) *Builder {
	if n > 0 {
		b.cfg.EventBuffer = n
	}
	return b
}

// WithSink sets the receiver of scan events and highlights.
func (b *Builder) WithSink(s Sink) *Builder {
	b.sink = s
	return b
}

// WithLayout sets the initial view layout.
func (b *Builder) WithLayout(layout geometry.Size) *Builder {
	b.layout = layout
	return b
}

// Config returns a copy of the builder's configuration.
func (b *Builder) Config() Config { return b.cfg.clone() }

// Build validates the configuration and starts a session.
func (b *Builder) Build() (*Session, error) {
	return newSession(b.cfg.clone(), b.sink, b.layout)
}
