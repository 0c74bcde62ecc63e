// Package orientation describes how a video frame is oriented relative to the
// device and adapts render-surface layouts to the frame's axis convention.
package orientation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/geometry"
)

// ErrUnknownOrientation is returned by Parse for names outside the four
// supported orientations.
var ErrUnknownOrientation = errors.New("orientation: unknown orientation")

// Orientation is the frame orientation reported alongside each frame.
// The zero value is Unknown; values outside the defined constants are
// treated like Unknown by every consumer.
type Orientation int

const (
	Unknown Orientation = iota
	Portrait
	PortraitUpsideDown
	LandscapeLeft
	LandscapeRight
)

var names = map[Orientation]string{
	Portrait:           "portrait",
	PortraitUpsideDown: "portrait-upside-down",
	LandscapeLeft:      "landscape-left",
	LandscapeRight:     "landscape-right",
}

// All lists the defined orientations in declaration order.
func All() []Orientation {
	return []Orientation{Portrait, PortraitUpsideDown, LandscapeLeft, LandscapeRight}
}

// String returns the canonical hyphenated name, or "unknown".
func (o Orientation) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether o is one of the four defined orientations.
func (o Orientation) Valid() bool {
	_, ok := names[o]
	return ok
}

// IsPortrait reports whether o is portrait or portrait-upside-down.
func (o Orientation) IsPortrait() bool {
	return o == Portrait || o == PortraitUpsideDown
}

// Parse converts a name such as "landscape-left" into an Orientation.
// Matching is case-insensitive and accepts underscores and camelCase
// ("landscapeLeft") as written by some hosts.
func Parse(s string) (Orientation, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	switch key {
	case "portrait":
		return Portrait, nil
	case "portrait-upside-down", "portraitupsidedown":
		return PortraitUpsideDown, nil
	case "landscape-left", "landscapeleft":
		return LandscapeLeft, nil
	case "landscape-right", "landscaperight":
		return LandscapeRight, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnknownOrientation, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized names
// decode to Unknown without error so that a frame carrying an unexpected
// orientation still flows through the pipeline.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		*o = Unknown
		return nil
	}
	*o = parsed
	return nil
}

// AdjustLayout returns the view layout expressed in the frame's axis
// convention. Sensor frames are delivered landscape, so for portrait
// orientations the on-screen width and height are swapped; landscape
// orientations (and unknown values) leave the layout unchanged.
func AdjustLayout(layout geometry.Size, o Orientation) geometry.Size {
	if o.IsPortrait() {
		return layout.Swapped()
	}
	return layout
}
