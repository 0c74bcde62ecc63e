// Package gate decides, per processed frame, whether a scan event is emitted.
//
// A Gate starts Pristine. The first frame that reaches it only arms it and
// never emits. After that, continuous mode emits every frame with at least
// one detection, and once mode emits when the ordered list of values differs
// from the last emitted one. Deciding and committing are separate steps so a
// frame that is discarded after the decision leaves the state untouched.
package gate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidScanMode is returned for modes other than continuous and once.
var ErrInvalidScanMode = errors.New("gate: invalid scan mode")

// Mode is the scan mode.
type Mode string

const (
	Continuous Mode = "continuous"
	Once       Mode = "once"
)

// ParseMode parses "continuous" or "once" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate reports ErrInvalidScanMode for unknown modes.
func (m Mode) Validate() error {
	switch m {
	case Continuous, Once:
		return nil
	default:
		return fmt.Errorf("%w: %q (must be one of: continuous, once)", ErrInvalidScanMode, string(m))
	}
}

// State of the gate.
type State int

const (
	Pristine State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "pristine"
}

// Action is what the caller should do with a frame.
type Action int

const (
	// ActionNone emits nothing.
	ActionNone Action = iota
	// ActionPrime arms a pristine gate; nothing is emitted.
	ActionPrime
	// ActionScan emits a scan event with the frame's detections.
	ActionScan
	// ActionClear reports, in once mode, that the visible set became empty.
	ActionClear
)

func (a Action) String() string {
	switch a {
	case ActionPrime:
		return "prime"
	case ActionScan:
		return "scan"
	case ActionClear:
		return "clear"
	default:
		return "none"
	}
}

// Decision is the outcome of Decide. It is applied with Commit.
type Decision struct {
	Action Action
	// Values are the frame's detection values, in order.
	Values []string
	// From is the gate state the decision was taken in.
	From State

	remember   bool
	generation uint64
}

// Emits reports whether the decision produces a scan event.
func (d Decision) Emits() bool {
	return d.Action == ActionScan
}

// Gate holds the scan state of one session. It is owned by the frame path
// and is not safe for concurrent use.
type Gate struct {
	mode        Mode
	state       State
	lastEmitted []string
	generation  uint64
}

// New returns a pristine gate for mode.
func New(mode Mode) (*Gate, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	return &Gate{mode: mode}, nil
}

// Mode returns the scan mode.
func (g *Gate) Mode() Mode { return g.mode }

// State returns the current state.
func (g *Gate) State() State { return g.state }

// LastEmitted returns a copy of the last emitted values.
func (g *Gate) LastEmitted() []string { return slices.Clone(g.lastEmitted) }

// Decide computes the decision for a frame whose surviving detections have
// the given values. It does not change the gate.
func (g *Gate) Decide(values []string) Decision {
	d := Decision{Values: values, From: g.state, generation: g.generation}

	if g.state == Pristine {
		d.Action = ActionPrime
		return d
	}

	switch g.mode {
	case Continuous:
		if len(values) > 0 {
			d.Action = ActionScan
		}
	case Once:
		switch {
		case len(values) == 0 && len(g.lastEmitted) > 0:
			d.Action = ActionClear
			d.remember = true
		case len(values) > 0 && !slices.Equal(values, g.lastEmitted):
			d.Action = ActionScan
			d.remember = true
		}
	}
	return d
}

// Commit applies a decision taken by Decide. Decisions taken before the
// last Reset are ignored.
func (g *Gate) Commit(d Decision) {
	if d.generation != g.generation {
		return
	}
	if d.Action == ActionPrime {
		g.state = Armed
	}
	if d.remember {
		g.lastEmitted = slices.Clone(d.Values)
	}
}

// Reset returns the gate to Pristine with no emitted values, for example
// when the session configuration is replaced.
func (g *Gate) Reset() {
	g.state = Pristine
	g.lastEmitted = nil
	g.generation++
}

// Reconfigure resets the gate and switches it to mode.
func (g *Gate) Reconfigure(mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	g.mode = mode
	g.Reset()
	return nil
}
