// Package replay drives a scanner session from a recorded YAML script of
// layout changes, scan toggles and detector frames, and reports what the
// session emitted. It backs the replay command and regression fixtures.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScript is returned for scripts that cannot be replayed.
var ErrInvalidScript = errors.New("replay: invalid script")

// Script is a recorded scanner session.
type Script struct {
	Name   string        `yaml:"name"`
	Layout geometry.Size `yaml:"layout"`
	// Scanner overrides fields of the base scanner configuration.
	Scanner yaml.Node `yaml:"scanner"`
	Steps   []Step    `yaml:"steps"`
}

// Step is one host action. Exactly one of Frame, Layout, ScanEnabled or
// Configure is set.
type Step struct {
	Frame       *FrameStep     `yaml:"frame,omitempty"`
	Layout      *geometry.Size `yaml:"layout,omitempty"`
	ScanEnabled *bool          `yaml:"scan_enabled,omitempty"`
	Configure   *yaml.Node     `yaml:"configure,omitempty"`
}

// FrameStep is a sampled frame together with what the detector reported.
type FrameStep struct {
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	Orientation string  `yaml:"orientation"`
	TimestampMS int64   `yaml:"timestamp_ms"`
	// Detections is the detector output as written by the host, in either
	// the fractional or the pixel record shape.
	Detections any          `yaml:"detections"`
	Expect     *Expectation `yaml:"expect,omitempty"`
}

// Expectation asserts on a frame's outcome. Unset fields are not checked.
type Expectation struct {
	Outcome    string          `yaml:"outcome,omitempty"`
	Values     []string        `yaml:"values,omitempty"`
	Emitted    *bool           `yaml:"emitted,omitempty"`
	Cleared    *bool           `yaml:"cleared,omitempty"`
	Highlights []geometry.Rect `yaml:"highlights,omitempty"`
}

// Frame converts the step into a pipeline frame. Unrecognized orientation
// names become orientation.Unknown, which leaves points unrotated.
func (f FrameStep) Frame() barcode.Frame {
	o, err := orientation.Parse(f.Orientation)
	if err != nil {
		o = orientation.Unknown
	}
	return barcode.Frame{
		Width:       f.Width,
		Height:      f.Height,
		Orientation: o,
		Timestamp:   time.Duration(f.TimestampMS) * time.Millisecond,
	}
}

func (s Step) kind() (string, error) {
	var kinds []string
	if s.Frame != nil {
		kinds = append(kinds, "frame")
	}
	if s.Layout != nil {
		kinds = append(kinds, "layout")
	}
	if s.ScanEnabled != nil {
		kinds = append(kinds, "scan_enabled")
	}
	if s.Configure != nil {
		kinds = append(kinds, "configure")
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("%w: step must set exactly one action, got %v", ErrInvalidScript, kinds)
	}
	return kinds[0], nil
}

// Parse decodes a script and checks its structure.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for i, st := range s.Steps {
		if _, err := st.kind(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	f, err := os.Open(path) //nolint:gosec // G304: replaying a user-provided script is expected
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// ScannerConfig applies the script's overrides to base.
func (s *Script) ScannerConfig(base config.ScannerConfig) (config.ScannerConfig, error) {
	return overlay(base, &s.Scanner)
}

func overlay(base config.ScannerConfig, node *yaml.Node) (config.ScannerConfig, error) {
	out := base
	out.CodeTypes = append([]string(nil), base.CodeTypes...)
	if base.RegionOfInterest != nil {
		roi := *base.RegionOfInterest
		out.RegionOfInterest = &roi
	}
	if node == nil || node.Kind == 0 {
		return out, nil
	}
	if err := node.Decode(&out); err != nil {
		return base, fmt.Errorf("%w: scanner: %v", ErrInvalidScript, err)
	}
	return out, nil
}
