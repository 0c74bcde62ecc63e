// Package highlight projects detections into view-space overlay shapes.
package highlight

import (
	"strconv"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
)

// Highlight is one overlay shape in view pixels.
type Highlight struct {
	// Key is "<value>.<index>", unique within a frame.
	Key         string           `json:"key" yaml:"key"`
	Value       string           `json:"value" yaml:"value"`
	Type        barcode.CodeType `json:"type" yaml:"type"`
	Corners     []geometry.Point `json:"corners" yaml:"corners"`
	BoundingBox geometry.Rect    `json:"boundingBox" yaml:"bounding_box"`
}

// Key builds the highlight key for the detection at index.
func Key(value string, index int) string {
	return value + "." + strconv.Itoa(index)
}

// Projector turns a frame's surviving detections into highlights and tracks
// whether the last published set was empty. It belongs to the frame path.
type Projector struct {
	Enabled bool
	Mapper  *mapping.Mapper

	last []Highlight
}

// NewProjector returns a projector using m.
func NewProjector(m *mapping.Mapper, enabled bool) *Projector {
	return &Projector{Enabled: enabled, Mapper: m}
}

// Project maps the detections for frame into layout and publishes them.
// When highlighting is disabled or the layout is unknown the previous set is
// returned unchanged with no update. The boolean reports whether the
// overlay needs redrawing.
func (p *Projector) Project(ds []barcode.Detection, frame barcode.Frame, layout geometry.Size) ([]Highlight, bool) {
	if !p.Enabled || p.Mapper == nil || !layout.Known() {
		return p.last, false
	}
	t, err := p.Mapper.ForFrame(frame.Size(), layout, frame.Orientation)
	if err != nil {
		return p.last, false
	}
	hs := Map(ds, t)
	return hs, p.Publish(hs)
}

// Map projects detections with a resolved frame transform. Corners keep
// their order; the bounding box is taken from the mapped corners.
func Map(ds []barcode.Detection, t mapping.Transform) []Highlight {
	hs := make([]Highlight, len(ds))
	for i, d := range ds {
		corners := t.MapAll(d.CornerPoints)
		hs[i] = Highlight{
			Key:         Key(d.Value, i),
			Value:       d.Value,
			Type:        d.Type,
			Corners:     corners,
			BoundingBox: geometry.BoundingBox(corners),
		}
	}
	return hs
}

// Publish records hs as the current set and reports whether an update should
// be signaled. Going from empty to empty is not an update.
func (p *Projector) Publish(hs []Highlight) bool {
	update := len(hs) > 0 || len(p.last) > 0
	p.last = hs
	return update
}

// Last returns the most recently published set.
func (p *Projector) Last() []Highlight {
	return p.last
}

// Reset forgets the published set.
func (p *Projector) Reset() {
	p.last = nil
}
