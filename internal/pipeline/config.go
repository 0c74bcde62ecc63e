package pipeline

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
)

var (
	// ErrInvalidTargetFPS is returned when the target frame rate is not a
	// positive finite number.
	ErrInvalidTargetFPS = errors.New("pipeline: target fps must be positive")

	// ErrInvalidRegion is returned for a region of interest with negative size.
	ErrInvalidRegion = errors.New("pipeline: invalid region of interest")

	// ErrLayoutUnknown is reported when the view layout has not been set.
	ErrLayoutUnknown = mapping.ErrLayoutUnknown
)

// Config is the scan configuration of one session. It is replaced as a
// whole, never mutated field by field while a session runs.
type Config struct {
	// CodeTypes restricts matches. Empty means no restriction.
	CodeTypes []barcode.CodeType
	// RegionOfInterest in view pixels. Nil accepts the whole view.
	RegionOfInterest    *geometry.Rect
	ScanMode            gate.Mode
	TargetFPS           float64
	ScanEnabled         bool
	ScaleMode           mapping.ScaleMode
	HighlightingEnabled bool
	Platform            mapping.Platform
	// EventBuffer bounds the number of undelivered scan events.
	EventBuffer int
}

// DefaultConfig returns the defaults: continuous scanning at 2 fps, cover
// scaling, highlighting on, reflect platform rules.
func DefaultConfig() Config {
	return Config{
		ScanMode:            gate.Continuous,
		TargetFPS:           2,
		ScanEnabled:         true,
		ScaleMode:           mapping.Cover,
		HighlightingEnabled: true,
		Platform:            mapping.Reflect,
		EventBuffer:         64,
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	if err := c.ScanMode.Validate(); err != nil {
		return err
	}
	if err := c.ScaleMode.Validate(); err != nil {
		return err
	}
	if _, err := mapping.TableFor(c.Platform); err != nil {
		return err
	}
	if !(c.TargetFPS > 0) || math.IsInf(c.TargetFPS, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTargetFPS, c.TargetFPS)
	}
	if r := c.RegionOfInterest; r != nil && (r.Width < 0 || r.Height < 0) {
		return fmt.Errorf("%w: %+v", ErrInvalidRegion, *r)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("pipeline: event buffer must be positive, got %d", c.EventBuffer)
	}
	return nil
}

// maxFrameInterval caps FrameInterval for very low frame rates.
const maxFrameInterval = time.Hour

// FrameInterval is the minimum timestamp spacing between processed frames,
// at most maxFrameInterval.
func (c Config) FrameInterval() time.Duration {
	interval := float64(time.Second) / c.TargetFPS
	if !(interval < float64(maxFrameInterval)) {
		return maxFrameInterval
	}
	return time.Duration(interval)
}

// clone deep-copies the slice and pointer fields.
func (c Config) clone() Config {
	out := c
	out.CodeTypes = slices.Clone(c.CodeTypes)
	if c.RegionOfInterest != nil {
		roi := *c.RegionOfInterest
		out.RegionOfInterest = &roi
	}
	return out
}
