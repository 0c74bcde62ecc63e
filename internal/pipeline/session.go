// Package pipeline runs scanner sessions: each frame's raw detections are
// normalized, filtered by code type and region of interest, gated into scan
// events and projected into overlay highlights. Outputs reach the host
// through a Sink on a dispatcher goroutine, never on the frame path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/google/uuid"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("pipeline: session closed")

// settings is an immutable configuration snapshot published by the host.
type settings struct {
	cfg        Config
	generation uint64
}

// frameState is everything owned by the frame path. It is rebuilt when the
// published settings change generation.
type frameState struct {
	generation uint64
	cfg        Config
	mapper     *mapping.Mapper
	gate       *gate.Gate
	projector  *highlight.Projector
	throttle   *throttle
	stages     []stage
}

func newFrameState(set *settings) (*frameState, error) {
	st := &frameState{}
	if err := st.apply(set); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *frameState) apply(set *settings) error {
	m, err := mapping.NewMapper(set.cfg.Platform, set.cfg.ScaleMode)
	if err != nil {
		return err
	}
	if st.gate == nil {
		if st.gate, err = gate.New(set.cfg.ScanMode); err != nil {
			return err
		}
	} else if err := st.gate.Reconfigure(set.cfg.ScanMode); err != nil {
		return err
	}
	if st.throttle == nil {
		st.throttle = newThrottle(set.cfg.FrameInterval())
	} else {
		st.throttle.reset(set.cfg.FrameInterval())
	}
	st.mapper = m
	st.projector = highlight.NewProjector(m, set.cfg.HighlightingEnabled)
	st.stages = buildStages(set.cfg)
	st.cfg = set.cfg
	st.generation = set.generation
	return nil
}

// Session is one active scanner. ProcessFrame is called from the frame
// path; SetLayout, SetScanEnabled and Configure from the host. All methods
// are safe for concurrent use.
type Session struct {
	id      string
	logger  *slog.Logger
	created time.Time

	settings    atomic.Pointer[settings]
	layout      atomic.Pointer[geometry.Size]
	scanEnabled atomic.Bool
	closed      atomic.Bool
	configMu    sync.Mutex

	frameMu sync.Mutex
	state   *frameState

	dispatcher *dispatcher
	stats      Stats

	// beforeCommit runs between the decision and the commit point. Tests use
	// it to change host state while a frame is in flight.
	beforeCommit func()
}

func newSession(cfg Config, sink Sink, layout geometry.Size) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	set := &settings{cfg: cfg, generation: 1}
	st, err := newFrameState(set)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := slog.Default().With("session", id)
	s := &Session{
		id:         id,
		logger:     logger,
		created:    time.Now(),
		state:      st,
		dispatcher: newDispatcher(sink, cfg.EventBuffer, logger),
	}
	s.settings.Store(set)
	s.layout.Store(&layout)
	s.scanEnabled.Store(cfg.ScanEnabled)
	activeSessions.Inc()

	logger.Info("Scanner session started",
		"scan_mode", cfg.ScanMode,
		"scale_mode", cfg.ScaleMode,
		"platform", cfg.Platform.String(),
		"target_fps", cfg.TargetFPS)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Config returns the current configuration.
func (s *Session) Config() Config { return s.settings.Load().cfg.clone() }

// Layout returns the last reported view layout.
func (s *Session) Layout() geometry.Size { return *s.layout.Load() }

// SetLayout reports a new view layout. A layout with a non-positive side
// marks the layout unknown.
func (s *Session) SetLayout(layout geometry.Size) {
	s.layout.Store(&layout)
}

// ScanEnabled reports the scan toggle.
func (s *Session) ScanEnabled() bool { return s.scanEnabled.Load() }

// SetScanEnabled toggles scanning. Disabling while a frame is in flight
// discards that frame's outputs.
func (s *Session) SetScanEnabled(enabled bool) {
	if s.scanEnabled.Swap(enabled) != enabled {
		s.logger.Debug("Scan toggled", "enabled", enabled)
	}
}

// Configure replaces the whole configuration. The scan gate returns to
// pristine, the throttle restarts and the scan toggle takes cfg's value.
func (s *Session) Configure(cfg Config) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()

	prev := s.settings.Load()
	s.settings.Store(&settings{cfg: cfg.clone(), generation: prev.generation + 1})
	s.scanEnabled.Store(cfg.ScanEnabled)
	s.logger.Info("Scanner session reconfigured",
		"scan_mode", cfg.ScanMode,
		"scale_mode", cfg.ScaleMode,
		"target_fps", cfg.TargetFPS)
	return nil
}

// ProcessFrame runs one frame through the pipeline. raw is the detector
// output: a []barcode.RawDetection or the loosely typed value a host returns
// (see barcode.ParseBackendResult).
//
// Throttled frames have no effect. A frame with a detection that cannot be
// normalized is skipped and the error returned; the session stays usable.
// A malformed result is logged and treated as a frame without detections.
// When ctx is cancelled, the session closes, the scan toggle is switched off
// or the configuration is replaced while the frame is in flight, its outputs
// are discarded and no scan state is committed.
func (s *Session) ProcessFrame(ctx context.Context, frame barcode.Frame, raw any) (FrameResult, error) {
	start := time.Now()
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	res, err := s.process(ctx, frame, raw)
	res.Duration = time.Since(start)

	framesTotal.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == OutcomeProcessed {
		frameDuration.Observe(res.Duration.Seconds())
	}
	s.stats.record(res)
	return res, err
}

func (s *Session) process(ctx context.Context, frame barcode.Frame, raw any) (FrameResult, error) {
	discarded := FrameResult{Outcome: OutcomeDiscarded}
	if s.closed.Load() {
		return discarded, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return discarded, err
	}

	set := s.settings.Load()
	st := s.state
	if st.generation != set.generation {
		if err := st.apply(set); err != nil {
			return discarded, err
		}
	}
	if !st.throttle.allow(frame.Timestamp) {
		return FrameResult{Outcome: OutcomeThrottled}, nil
	}

	scanEnabled := s.scanEnabled.Load()
	fc := &frameContext{
		frame:       frame,
		layout:      s.Layout(),
		scanEnabled: scanEnabled,
		mapper:      st.mapper,
		logger:      s.logger,
	}

	raws, err := barcode.ParseBackendResult(raw)
	switch {
	case errors.Is(err, barcode.ErrMalformedBackendResult):
		s.logger.Warn("Malformed backend result, treating frame as empty", "error", err)
	case err != nil:
		st.throttle.mark(frame.Timestamp)
		s.logger.Warn("Skipping frame", "error", err, "timestamp", frame.Timestamp)
		return FrameResult{Outcome: OutcomeSkipped}, err
	default:
		fc.raws = raws
	}
	detectionsTotal.WithLabelValues("raw").Add(float64(len(fc.raws)))

	for _, stg := range st.stages {
		if err := stg.run(fc); err != nil {
			st.throttle.mark(frame.Timestamp)
			s.logger.Warn("Skipping frame", "stage", stg.name(), "error", err, "timestamp", frame.Timestamp)
			return FrameResult{Outcome: OutcomeSkipped}, err
		}
		detectionsTotal.WithLabelValues(stg.name()).Add(float64(len(fc.detections)))
	}

	wasPristine := st.gate.State() == gate.Pristine
	decision := st.gate.Decide(barcode.Values(fc.detections))

	var hs []highlight.Highlight
	project := st.cfg.HighlightingEnabled && !wasPristine
	if project {
		t, err := fc.frameTransform()
		if err != nil {
			s.logger.Debug("Highlights skipped", "reason", err)
			project = false
		} else {
			hs = highlight.Map(fc.detections, *t)
		}
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if reason := s.abandoned(ctx, set, scanEnabled); reason != nil {
		s.logger.Debug("Discarding in-flight frame", "timestamp", frame.Timestamp, "reason", reason)
		if errors.Is(reason, errConfigReplaced) || errors.Is(reason, errScanDisabled) {
			return discarded, nil
		}
		return discarded, reason
	}

	// Commit.
	st.gate.Commit(decision)
	st.throttle.mark(frame.Timestamp)

	res := FrameResult{Outcome: OutcomeProcessed, Detections: fc.detections, Action: decision.Action}
	switch decision.Action {
	case gate.ActionScan:
		s.dispatcher.scanned(fc.detections, frame)
		scanEventsTotal.WithLabelValues("scanned").Inc()
		res.Emitted = true
	case gate.ActionClear:
		s.dispatcher.cleared(frame)
		scanEventsTotal.WithLabelValues("cleared").Inc()
		res.Cleared = true
	case gate.ActionPrime:
		s.logger.Debug("Scan gate armed", "timestamp", frame.Timestamp)
	}
	if project && st.projector.Publish(hs) {
		res.Highlights = hs
		res.HighlightsUpdated = true
		s.dispatcher.setHighlights(hs)
	}
	return res, nil
}

var (
	errConfigReplaced = errors.New("pipeline: configuration replaced while frame was in flight")
	errScanDisabled   = errors.New("pipeline: scanning disabled while frame was in flight")
)

// abandoned returns the reason an in-flight frame must not commit, if any.
func (s *Session) abandoned(ctx context.Context, set *settings, scanEnabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.settings.Load() != set {
		return errConfigReplaced
	}
	if scanEnabled && !s.scanEnabled.Load() {
		return errScanDisabled
	}
	return nil
}

// Flush waits until every output committed so far has reached the Sink.
func (s *Session) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.dispatcher.flush(ctx)
}

// Stats returns the session counters.
func (s *Session) Stats() *Stats { return &s.stats }

// Info returns a summary of the session for logging and health endpoints.
func (s *Session) Info() map[string]any {
	cfg := s.Config()
	types := make([]string, len(cfg.CodeTypes))
	for i, t := range cfg.CodeTypes {
		types[i] = t.String()
	}
	info := map[string]any{
		"id":                   s.id,
		"created":              s.created.Format(time.RFC3339),
		"scan_mode":            string(cfg.ScanMode),
		"scale_mode":           string(cfg.ScaleMode),
		"platform":             cfg.Platform.String(),
		"target_fps":           cfg.TargetFPS,
		"scan_enabled":         s.ScanEnabled(),
		"highlighting_enabled": cfg.HighlightingEnabled,
		"code_types":           types,
		"layout":               s.Layout(),
		"stats":                s.stats.Snapshot(),
	}
	if cfg.RegionOfInterest != nil {
		info["region_of_interest"] = *cfg.RegionOfInterest
	}
	return info
}

// Close stops the session. Outputs already committed are still delivered
// before Close returns. Close is idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	// Wait for an in-flight frame to observe the close.
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.dispatcher.close()
	activeSessions.Dec()
	s.logger.Info("Scanner session closed", "stats", s.stats.Snapshot())
	return nil
}
