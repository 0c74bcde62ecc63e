package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
)

var (
	// ErrUnsupportedOrientation is returned when the platform table has no
	// rule for an orientation. Callers fall back to the identity rule.
	ErrUnsupportedOrientation = errors.New("mapping: unsupported orientation")

	// ErrUnknownPlatform is returned by ParsePlatform for unrecognized names.
	ErrUnknownPlatform = errors.New("mapping: unknown platform")
)

// Platform selects the rotation table used for a session. The host camera
// stack decides which one applies; it is fixed when the session is built.
type Platform int

const (
	// Reflect is the four-orientation table: every orientation reflects or
	// transposes the scaled point within the view.
	Reflect Platform = iota
	// PortraitOnly only defines a rule for portrait frames.
	PortraitOnly
)

var platformNames = map[Platform]string{
	Reflect:      "reflect",
	PortraitOnly: "portrait-only",
}

var platformAliases = map[string]Platform{
	"reflect":       Reflect,
	"ios":           Reflect,
	"a":             Reflect,
	"portrait-only": PortraitOnly,
	"portraitonly":  PortraitOnly,
	"android":       PortraitOnly,
	"b":             PortraitOnly,
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return fmt.Sprintf("platform(%d)", int(p))
}

// ParsePlatform accepts the canonical names plus the host aliases
// "ios" (reflect) and "android" (portrait-only).
func ParsePlatform(s string) (Platform, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if p, ok := platformAliases[key]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// Rule remaps a scaled point inside a view of size target.
type Rule func(p geometry.Point, target geometry.Size) geometry.Point

// Identity leaves the point untouched.
func Identity(p geometry.Point, _ geometry.Size) geometry.Point { return p }

// RotationTable maps each supported orientation to its rule.
type RotationTable map[orientation.Orientation]Rule

var tables = map[Platform]RotationTable{
	Reflect: {
		orientation.Portrait: func(p geometry.Point, t geometry.Size) geometry.Point {
			return geometry.Point{X: t.Height - p.Y, Y: t.Width - p.X}
		},
		orientation.LandscapeLeft: func(p geometry.Point, t geometry.Size) geometry.Point {
			return geometry.Point{X: t.Width - p.X, Y: p.Y}
		},
		orientation.LandscapeRight: func(p geometry.Point, t geometry.Size) geometry.Point {
			return geometry.Point{X: p.X, Y: t.Height - p.Y}
		},
		orientation.PortraitUpsideDown: func(p geometry.Point, _ geometry.Size) geometry.Point {
			return geometry.Point{X: p.Y, Y: p.X}
		},
	},
	PortraitOnly: {
		orientation.Portrait: func(p geometry.Point, t geometry.Size) geometry.Point {
			return geometry.Point{X: t.Height - p.Y, Y: p.X}
		},
	},
}

// TableFor returns the rotation table of a platform.
func TableFor(p Platform) (RotationTable, error) {
	t, ok := tables[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
	}
	return t, nil
}

// Lookup returns the rule for o. When o has no entry the identity rule is
// returned together with ErrUnsupportedOrientation.
func (t RotationTable) Lookup(o orientation.Orientation) (Rule, error) {
	if r, ok := t[o]; ok {
		return r, nil
	}
	return Identity, fmt.Errorf("%w: %s", ErrUnsupportedOrientation, o)
}

// Supported lists the orientations the table has rules for.
func (t RotationTable) Supported() []orientation.Orientation {
	out := make([]orientation.Orientation, 0, len(t))
	for _, o := range orientation.All() {
		if _, ok := t[o]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Rotate applies the platform rule for o to a point already scaled into
// target. Unsupported orientations yield p unchanged and
// ErrUnsupportedOrientation.
func Rotate(p geometry.Point, target geometry.Size, o orientation.Orientation, platform Platform) (geometry.Point, error) {
	table, err := TableFor(platform)
	if err != nil {
		return p, err
	}
	rule, err := table.Lookup(o)
	return rule(p, target), err
}
