// Package mapping converts frame-space points into view-space points.
//
// Mapping is always scale-then-rotate: a point is first fitted into the
// orientation-adjusted view size according to a ScaleMode (contain or cover)
// and centered along the overflowing axis, then remapped by a rotation rule
// looked up from the session's Platform table.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/geometry"
)

var (
	// ErrInvalidScaleMode is returned for scale modes other than contain and cover.
	ErrInvalidScaleMode = errors.New("mapping: invalid scale mode")

	// ErrLayoutUnknown is returned when a source or target size has a
	// non-positive dimension.
	ErrLayoutUnknown = errors.New("mapping: layout unknown")
)

// ScaleMode selects how a source rectangle is fitted into a target of a
// different aspect ratio.
type ScaleMode string

const (
	// Contain fits the whole source inside the target (letterboxing).
	Contain ScaleMode = "contain"
	// Cover fills the whole target, cropping the source.
	Cover ScaleMode = "cover"
)

// ParseScaleMode parses "contain" or "cover" (case-insensitive).
func ParseScaleMode(s string) (ScaleMode, error) {
	m := ScaleMode(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate reports ErrInvalidScaleMode for anything but Contain or Cover.
func (m ScaleMode) Validate() error {
	switch m {
	case Contain, Cover:
		return nil
	default:
		return fmt.Errorf("%w: %q (must be one of: contain, cover)", ErrInvalidScaleMode, string(m))
	}
}

// factor returns the uniform scale factor and whether the vertical axis is
// the one receiving the centering offset.
func (m ScaleMode) factor(source, target geometry.Size) (float64, bool, error) {
	ratioW := target.Width / source.Width
	ratioH := target.Height / source.Height

	var f float64
	switch m {
	case Contain:
		f = min(ratioW, ratioH)
	case Cover:
		f = max(ratioW, ratioH)
	default:
		return 0, false, m.Validate()
	}

	centerY := (ratioW < ratioH && m == Contain) || (ratioW > ratioH && m == Cover)
	return f, centerY, nil
}

// ScalePoint scales p from source into target under mode and adds the
// centering offset to exactly one axis: y when the source overflows
// vertically under mode, x otherwise. The result is rounded to whole pixels.
func ScalePoint(p geometry.Point, source, target geometry.Size, mode ScaleMode) (geometry.Point, error) {
	if !source.Known() || !target.Known() {
		return p, ErrLayoutUnknown
	}
	f, centerY, err := mode.factor(source, target)
	if err != nil {
		return p, err
	}

	out := geometry.Scale(p, f, f)
	if centerY {
		out.Y += (target.Height - source.Height*f) / 2
	} else {
		out.X += (target.Width - source.Width*f) / 2
	}
	return geometry.RoundPoint(out), nil
}

// CenteringOffset returns the offsets ScalePoint adds to x and y. Exactly one
// of them is the axis that receives the centering term; the other is zero.
// The boolean reports which axis that is (true for y).
func CenteringOffset(source, target geometry.Size, mode ScaleMode) (dx, dy float64, onY bool, err error) {
	if !source.Known() || !target.Known() {
		return 0, 0, false, ErrLayoutUnknown
	}
	f, centerY, err := mode.factor(source, target)
	if err != nil {
		return 0, 0, false, err
	}
	if centerY {
		return 0, (target.Height - source.Height*f) / 2, true, nil
	}
	return (target.Width - source.Width*f) / 2, 0, false, nil
}
