package mapping

import (
	"errors"
	"log/slog"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
)

// Mapper maps frame-space points into view space for one session.
type Mapper struct {
	platform Platform
	mode     ScaleMode
	table    RotationTable
}

// NewMapper validates the platform and scale mode and resolves the
// platform's rotation table.
func NewMapper(platform Platform, mode ScaleMode) (*Mapper, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	table, err := TableFor(platform)
	if err != nil {
		return nil, err
	}
	return &Mapper{platform: platform, mode: mode, table: table}, nil
}

// Platform returns the platform the mapper was built for.
func (m *Mapper) Platform() Platform { return m.platform }

// ScaleMode returns the configured scale mode.
func (m *Mapper) ScaleMode() ScaleMode { return m.mode }

// Transform is the mapping of a single frame: source size, orientation-adjusted
// target size, scale mode and the rotation rule resolved once for the frame.
type Transform struct {
	Source      geometry.Size
	Target      geometry.Size
	Orientation orientation.Orientation
	Mode        ScaleMode
	// Unsupported is set when the orientation had no rule and Identity is used.
	Unsupported bool

	rule Rule
}

// ForFrame resolves the per-frame transform. It returns ErrLayoutUnknown
// when the layout has not been reported yet or the frame has no size.
// An orientation without a rule is logged once here and mapped with Identity.
func (m *Mapper) ForFrame(frame, layout geometry.Size, o orientation.Orientation) (Transform, error) {
	if !layout.Known() || !frame.Known() {
		return Transform{}, ErrLayoutUnknown
	}
	t := Transform{
		Source:      frame,
		Target:      orientation.AdjustLayout(layout, o),
		Orientation: o,
		Mode:        m.mode,
	}
	rule, err := m.table.Lookup(o)
	if errors.Is(err, ErrUnsupportedOrientation) {
		slog.Warn("Orientation has no rotation rule, using identity",
			"orientation", o.String(), "platform", m.platform.String())
		t.Unsupported = true
	}
	t.rule = rule
	return t, nil
}

// Map scales then rotates a single point.
func (t Transform) Map(p geometry.Point) geometry.Point {
	scaled, err := ScalePoint(p, t.Source, t.Target, t.Mode)
	if err != nil {
		// Target and mode were validated in ForFrame.
		return p
	}
	rule := t.rule
	if rule == nil {
		rule = Identity
	}
	return rule(scaled, t.Target)
}

// MapAll maps points in order.
func (t Transform) MapAll(pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = t.Map(p)
	}
	return out
}

// MapPoints is the one-shot form of ForFrame followed by MapAll.
func (m *Mapper) MapPoints(pts []geometry.Point, frame, layout geometry.Size, o orientation.Orientation) ([]geometry.Point, error) {
	t, err := m.ForFrame(frame, layout, o)
	if err != nil {
		return nil, err
	}
	return t.MapAll(pts), nil
}
