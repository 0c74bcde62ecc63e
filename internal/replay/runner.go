package replay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/MeKo-Tech/codescan/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Event is one sink callback observed during a replay.
type Event struct {
	Step       int                   `json:"step" yaml:"step"`
	Type       string                `json:"type" yaml:"type"`
	Values     []string              `json:"values,omitempty" yaml:"values,omitempty"`
	Highlights []highlight.Highlight `json:"highlights,omitempty" yaml:"highlights,omitempty"`
}

// FrameReport is the synchronous result of one frame step.
type FrameReport struct {
	Step       int                   `json:"step" yaml:"step"`
	Outcome    string                `json:"outcome" yaml:"outcome"`
	Values     []string              `json:"values,omitempty" yaml:"values,omitempty"`
	Emitted    bool                  `json:"emitted" yaml:"emitted"`
	Cleared    bool                  `json:"cleared" yaml:"cleared"`
	Highlights []highlight.Highlight `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
	Failures   []string              `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Report summarizes a replay.
type Report struct {
	Name      string         `json:"name" yaml:"name"`
	SessionID string         `json:"session_id" yaml:"session_id"`
	Frames    []FrameReport  `json:"frames" yaml:"frames"`
	Events    []Event        `json:"events" yaml:"events"`
	Stats     map[string]any `json:"stats" yaml:"stats"`
}

// Failures returns every expectation failure, prefixed with its step.
func (r *Report) Failures() []string {
	var out []string
	for _, f := range r.Frames {
		for _, msg := range f.Failures {
			out = append(out, fmt.Sprintf("step %d: %s", f.Step, msg))
		}
	}
	return out
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool { return len(r.Failures()) == 0 }

// recorder is the replay's pipeline.Sink. Steps are flushed one at a time,
// so the current step is known when callbacks arrive.
type recorder struct {
	mu     sync.Mutex
	step   int
	events []Event
}

func (r *recorder) setStep(i int) {
	r.mu.Lock()
	r.step = i
	r.mu.Unlock()
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	ev.Step = r.step
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnScanned(ds []barcode.Detection, _ barcode.Frame) {
	r.add(Event{Type: "scanned", Values: barcode.Values(ds)})
}

func (r *recorder) OnCleared(barcode.Frame) {
	r.add(Event{Type: "cleared"})
}

func (r *recorder) OnHighlights(hs []highlight.Highlight) {
	r.add(Event{Type: "highlights", Highlights: slices.Clone(hs)})
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Runner replays scripts against fresh sessions.
type Runner struct {
	base   config.ScannerConfig
	logger *slog.Logger
}

// NewRunner creates a runner whose sessions start from base.
func NewRunner(base config.ScannerConfig) *Runner {
	return &Runner{base: base, logger: slog.Default()}
}

// Run replays s and returns what the session produced. Frame-level errors
// are recorded in the report; only setup failures and cancellation are
// returned as errors.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	scanner, err := s.ScannerConfig(r.base)
	if err != nil {
		return nil, err
	}
	cfg, err := scanner.ToPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}

	rec := &recorder{}
	session, err := pipeline.NewBuilder().
		WithConfig(cfg).
		WithLayout(s.Layout).
		WithSink(rec).
		Build()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer func() { _ = session.Close() }()

	r.logger.Debug("Replaying script", "name", s.Name, "steps", len(s.Steps), "session", session.ID())
	report := &Report{Name: s.Name, SessionID: session.ID()}

	for i, step := range s.Steps {
		rec.setStep(i)
		switch {
		case step.Layout != nil:
			session.SetLayout(*step.Layout)
		case step.ScanEnabled != nil:
			session.SetScanEnabled(*step.ScanEnabled)
		case step.Configure != nil:
			if scanner, err = overlay(scanner, step.Configure); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			next, err := scanner.ToPipelineConfig()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w: %v", i, ErrInvalidScript, err)
			}
			if err := session.Configure(next); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		case step.Frame != nil:
			report.Frames = append(report.Frames, r.frame(ctx, session, i, step.Frame))
		}
		if err := session.Flush(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	report.Events = rec.snapshot()
	report.Stats = session.Stats().Snapshot()
	return report, nil
}

func (r *Runner) frame(ctx context.Context, session *pipeline.Session, i int, fs *FrameStep) FrameReport {
	res, err := session.ProcessFrame(ctx, fs.Frame(), fs.Detections)
	fr := FrameReport{
		Step:    i,
		Outcome: res.Outcome.String(),
		Values:  barcode.Values(res.Detections),
		Emitted: res.Emitted,
		Cleared: res.Cleared,
	}
	if res.HighlightsUpdated {
		fr.Highlights = res.Highlights
	}
	if err != nil {
		fr.Error = err.Error()
		r.logger.Debug("Frame failed", "step", i, "error", err)
	}
	if fs.Expect != nil {
		fr.Failures = check(*fs.Expect, res)
	}
	return fr
}

func check(want Expectation, res pipeline.FrameResult) []string {
	var failures []string
	if want.Outcome != "" && want.Outcome != res.Outcome.String() {
		failures = append(failures, fmt.Sprintf("outcome: want %s, got %s", want.Outcome, res.Outcome))
	}
	if want.Values != nil {
		if diff := cmp.Diff(want.Values, barcode.Values(res.Detections), cmpopts.EquateEmpty()); diff != "" {
			failures = append(failures, "values (-want +got):\n"+diff)
		}
	}
	if want.Emitted != nil && *want.Emitted != res.Emitted {
		failures = append(failures, fmt.Sprintf("emitted: want %t, got %t", *want.Emitted, res.Emitted))
	}
	if want.Cleared != nil && *want.Cleared != res.Cleared {
		failures = append(failures, fmt.Sprintf("cleared: want %t, got %t", *want.Cleared, res.Cleared))
	}
	if want.Highlights != nil {
		got := make([]geometry.Rect, 0, len(res.Highlights))
		for _, h := range res.Highlights {
			got = append(got, h.BoundingBox)
		}
		if diff := cmp.Diff(want.Highlights, got, cmpopts.EquateEmpty(), cmpopts.EquateApprox(0, 0.5)); diff != "" {
			failures = append(failures, "highlights (-want +got):\n"+diff)
		}
	}
	return failures
}
