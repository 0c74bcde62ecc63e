package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu         sync.Mutex
	events     []string
	scanned    [][]barcode.Detection
	highlights [][]highlight.Highlight
}

func (r *recordingSink) OnScanned(ds []barcode.Detection, _ barcode.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "scanned")
	r.scanned = append(r.scanned, ds)
}

func (r *recordingSink) OnCleared(barcode.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "cleared")
}

func (r *recordingSink) OnHighlights(hs []highlight.Highlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlights = append(r.highlights, hs)
}

func (r *recordingSink) snapshot() ([]string, [][]barcode.Detection, [][]highlight.Highlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([][]barcode.Detection(nil), r.scanned...), append([][]highlight.Highlight(nil), r.highlights...)
}

func squareAt(x, y, side float64) []geometry.Point {
	return []geometry.Point{{X: x, Y: y}, {X: x + side, Y: y}, {X: x + side, Y: y + side}, {X: x, Y: y + side}}
}

func code(value string, corners []geometry.Point) barcode.RawDetection {
	return barcode.PixelDetection{RawValue: value, Format: "qr", CornerPoints: corners}
}

func codes(values ...string) []barcode.RawDetection {
	out := make([]barcode.RawDetection, len(values))
	for i, v := range values {
		out[i] = code(v, squareAt(float64(10+20*i), 10, 10))
	}
	return out
}

// frameAt returns a square landscape frame stamped i seconds in.
func frameAt(i int) barcode.Frame {
	return barcode.Frame{Width: 400, Height: 400, Orientation: orientation.LandscapeRight, Timestamp: time.Duration(i) * time.Second}
}

func startSession(t *testing.T, b *Builder) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s, err := b.WithSink(sink).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sink
}

func process(t *testing.T, s *Session, frame barcode.Frame, raw any) FrameResult {
	t.Helper()
	res, err := s.ProcessFrame(context.Background(), frame, raw)
	require.NoError(t, err)
	return res
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestSession_FirstFrameOnlyArms(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))

	res := process(t, s, frameAt(0), codes("A"))
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, gate.ActionPrime, res.Action)
	assert.False(t, res.Emitted)
	assert.False(t, res.HighlightsUpdated, "no highlights while the gate is pristine")

	res = process(t, s, frameAt(1), codes("A"))
	assert.True(t, res.Emitted)
	assert.True(t, res.HighlightsUpdated)

	flush(t, s)
	events, scanned, hls := sink.snapshot()
	assert.Equal(t, []string{"scanned"}, events)
	assert.Equal(t, []string{"A"}, barcode.Values(scanned[0]))
	require.Len(t, hls, 1)
	assert.Equal(t, "A.0", hls[0][0].Key)
}

// 1920x1080 portrait frame in a 1080x1920 view with cover scaling. The
// portrait axis swap makes the adjusted layout match the frame, so the
// highlight stays 100px rather than the ~178px of the unswapped case
// (DESIGN.md, "Scenario 1 side length").
func TestSession_PortraitHighlight(t *testing.T) {
	s, sink := startSession(t, NewBuilder().
		WithScaleMode(mapping.Cover).
		WithPlatform(mapping.Reflect).
		WithLayout(geometry.Size{Width: 1080, Height: 1920}))

	frame := barcode.Frame{Width: 1920, Height: 1080, Orientation: orientation.Portrait}
	raw := []barcode.RawDetection{code("ABC123", squareAt(910, 490, 100))}

	process(t, s, frame, raw)
	frame.Timestamp = time.Second
	res := process(t, s, frame, raw)

	require.True(t, res.HighlightsUpdated)
	require.Len(t, res.Highlights, 1)
	h := res.Highlights[0]
	assert.Equal(t, "ABC123.0", h.Key)
	assert.Equal(t, geometry.Rect{X: 490, Y: 910, Width: 100, Height: 100}, h.BoundingBox)
	assert.True(t, geometry.Rect{Width: 1080, Height: 1920}.ContainsAll(h.Corners))

	flush(t, s)
	_, _, hls := sink.snapshot()
	assert.Equal(t, [][]highlight.Highlight{res.Highlights}, hls)
}

func TestSession_OnceModeAppearDisappearReappear(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithScanMode(gate.Once).WithLayout(geometry.Size{Width: 400, Height: 400}))

	process(t, s, frameAt(0), codes())
	for i, values := range [][]string{{"ABC123"}, {"ABC123"}, {}, {"ABC123"}} {
		process(t, s, frameAt(i+1), codes(values...))
	}

	flush(t, s)
	events, scanned, _ := sink.snapshot()
	assert.Equal(t, []string{"scanned", "cleared", "scanned"}, events)
	require.Len(t, scanned, 2)
	for _, ds := range scanned {
		assert.Equal(t, []string{"ABC123"}, barcode.Values(ds))
	}
}

func TestSession_RegionRejectsPartialOverlap(t *testing.T) {
	s, sink := startSession(t, NewBuilder().
		WithRegionOfInterest(&geometry.Rect{X: 0, Y: 0, Width: 100, Height: 100}).
		WithLayout(geometry.Size{Width: 400, Height: 400}))

	// Upside-down transposes x and y on the reflect platform.
	frame := func(i int) barcode.Frame {
		return barcode.Frame{Width: 400, Height: 400, Orientation: orientation.PortraitUpsideDown, Timestamp: time.Duration(i) * time.Second}
	}
	partial := code("PARTIAL", []geometry.Point{{X: 10, Y: 10}, {X: 50, Y: 150}, {X: 90, Y: 90}, {X: 10, Y: 90}})
	whole := code("WHOLE", squareAt(20, 20, 50))

	process(t, s, frame(0), nil)
	res := process(t, s, frame(1), []barcode.RawDetection{partial, whole})
	assert.Equal(t, []string{"WHOLE"}, barcode.Values(res.Detections))

	res = process(t, s, frame(2), []barcode.RawDetection{partial})
	assert.Empty(t, res.Detections)
	assert.False(t, res.Emitted)

	flush(t, s)
	_, scanned, _ := sink.snapshot()
	require.Len(t, scanned, 1)
	assert.Equal(t, []string{"WHOLE"}, barcode.Values(scanned[0]))
}

func TestSession_RegionWithUnknownLayoutRejectsAll(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithRegionOfInterest(&geometry.Rect{Width: 400, Height: 400}))

	process(t, s, frameAt(0), nil)
	res := process(t, s, frameAt(1), codes("A"))
	assert.Empty(t, res.Detections)
	assert.False(t, res.HighlightsUpdated)

	s.SetLayout(geometry.Size{Width: 400, Height: 400})
	res = process(t, s, frameAt(2), codes("A"))
	assert.Equal(t, []string{"A"}, barcode.Values(res.Detections))
}

func TestSession_UnsupportedRecordSkipsOnlyThatFrame(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)

	res, err := s.ProcessFrame(context.Background(), frameAt(1), []any{map[string]any{"value": "no variant"}})
	require.ErrorIs(t, err, barcode.ErrUnsupportedDetectionFormat)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, res.Detections)

	res = process(t, s, frameAt(2), codes("NEXT"))
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.True(t, res.Emitted)

	flush(t, s)
	events, _, _ := sink.snapshot()
	assert.Equal(t, []string{"scanned"}, events)
}

func TestSession_MalformedResultIsAnEmptyFrame(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithScanMode(gate.Once).WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)
	process(t, s, frameAt(1), codes("A"))

	res := process(t, s, frameAt(2), "not a list")
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Empty(t, res.Detections)
	assert.True(t, res.Cleared)
}

func TestSession_Throttle(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithTargetFPS(2).WithLayout(geometry.Size{Width: 400, Height: 400}))

	at := func(ms int) barcode.Frame {
		f := frameAt(0)
		f.Timestamp = time.Duration(ms) * time.Millisecond
		return f
	}
	assert.Equal(t, OutcomeProcessed, process(t, s, at(0), codes("A")).Outcome)
	assert.Equal(t, OutcomeThrottled, process(t, s, at(100), codes("A")).Outcome)
	assert.Equal(t, OutcomeThrottled, process(t, s, at(499), codes("A")).Outcome)
	res := process(t, s, at(500), codes("A"))
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.True(t, res.Emitted, "throttled frames must not arm the gate")
	assert.Equal(t, OutcomeProcessed, process(t, s, at(200), codes("A")).Outcome, "a clock restart passes")

	snap := s.Stats().Snapshot()
	assert.EqualValues(t, 3, snap["processed"])
	assert.EqualValues(t, 2, snap["throttled"])
}

func TestSession_CodeTypeRestriction(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithCodeTypes(barcode.TypeEAN13).WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)

	raw := []barcode.RawDetection{
		barcode.PixelDetection{RawValue: "qr", Format: "256", CornerPoints: squareAt(0, 0, 10)},
		barcode.PixelDetection{RawValue: "ean", Format: "32", CornerPoints: squareAt(20, 0, 10)},
	}
	res := process(t, s, frameAt(1), raw)
	assert.Equal(t, []string{"ean"}, barcode.Values(res.Detections))
}

func TestSession_ScanDisabledRejectsEverything(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithScanEnabled(false).WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)

	res := process(t, s, frameAt(1), codes("A"))
	assert.Empty(t, res.Detections)
	assert.False(t, res.Emitted)

	s.SetScanEnabled(true)
	assert.True(t, s.ScanEnabled())
	res = process(t, s, frameAt(2), codes("A"))
	assert.True(t, res.Emitted)

	flush(t, s)
	events, _, _ := sink.snapshot()
	assert.Equal(t, []string{"scanned"}, events)
}

func TestSession_HighlightsDisabledOrUnchanged(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithHighlighting(false).WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)
	res := process(t, s, frameAt(1), codes("A"))
	assert.False(t, res.HighlightsUpdated)

	s2, sink2 := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s2, frameAt(0), nil)
	assert.False(t, process(t, s2, frameAt(1), nil).HighlightsUpdated, "empty to empty is not an update")
	assert.True(t, process(t, s2, frameAt(2), codes("A")).HighlightsUpdated)
	assert.True(t, process(t, s2, frameAt(3), nil).HighlightsUpdated, "clearing the overlay is an update")

	flush(t, s)
	flush(t, s2)
	_, _, hls := sink.snapshot()
	assert.Empty(t, hls)
	_, _, hls2 := sink2.snapshot()
	require.NotEmpty(t, hls2)
	assert.Empty(t, hls2[len(hls2)-1])
}

func TestSession_CancelledContextDiscards(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.ProcessFrame(ctx, frameAt(0), codes("A"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)

	// Cancel while the frame is in flight: nothing is committed, so the next
	// frame still arms the gate.
	ctx, cancel = context.WithCancel(context.Background())
	s.beforeCommit = cancel
	res, err = s.ProcessFrame(ctx, frameAt(0), codes("A"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)

	s.beforeCommit = nil
	res = process(t, s, frameAt(0), codes("A"))
	assert.Equal(t, gate.ActionPrime, res.Action)
}

func TestSession_DisablingScanMidFrameDiscards(t *testing.T) {
	s, sink := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)

	s.beforeCommit = func() { s.SetScanEnabled(false) }
	res, err := s.ProcessFrame(context.Background(), frameAt(1), codes("A"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)

	flush(t, s)
	events, _, _ := sink.snapshot()
	assert.Empty(t, events)
}

func TestSession_ConfigureResetsGate(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithScanMode(gate.Once).WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)
	assert.True(t, process(t, s, frameAt(1), codes("A")).Emitted)

	cfg := s.Config()
	cfg.ScanMode = gate.Continuous
	require.NoError(t, s.Configure(cfg))
	assert.Equal(t, gate.Continuous, s.Config().ScanMode)

	res := process(t, s, frameAt(2), codes("A"))
	assert.Equal(t, gate.ActionPrime, res.Action)
	assert.True(t, process(t, s, frameAt(3), codes("A")).Emitted)
	assert.True(t, process(t, s, frameAt(4), codes("A")).Emitted)

	bad := s.Config()
	bad.TargetFPS = 0
	require.ErrorIs(t, s.Configure(bad), ErrInvalidTargetFPS)
}

func TestSession_ConfigureMidFrameDiscards(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))
	s.beforeCommit = func() { _ = s.Configure(s.Config()) }

	res, err := s.ProcessFrame(context.Background(), frameAt(0), codes("A"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, res.Outcome)
}

func TestSession_Close(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewBuilder().WithSink(sink).WithLayout(geometry.Size{Width: 400, Height: 400}).Build()
	require.NoError(t, err)

	process(t, s, frameAt(0), nil)
	process(t, s, frameAt(1), codes("A"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	events, _, _ := sink.snapshot()
	assert.Equal(t, []string{"scanned"}, events, "committed events are delivered before Close returns")

	_, err = s.ProcessFrame(context.Background(), frameAt(2), codes("A"))
	require.ErrorIs(t, err, ErrSessionClosed)
	require.ErrorIs(t, s.Configure(DefaultConfig()), ErrSessionClosed)
	require.ErrorIs(t, s.Flush(context.Background()), ErrSessionClosed)
}

func TestSession_AcceptsLooselyTypedResults(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))
	process(t, s, frameAt(0), nil)

	raw := []any{map[string]any{
		"payload":     "frac",
		"symbology":   "org.iso.QRCode",
		"boundingBox": map[string]any{"x": 0.1, "y": 0.1, "width": 0.1, "height": 0.1},
		"corners": []any{
			map[string]any{"x": 0.1, "y": 0.1},
			map[string]any{"x": 0.2, "y": 0.1},
			map[string]any{"x": 0.2, "y": 0.2},
			map[string]any{"x": 0.1, "y": 0.2},
		},
	}}
	res := process(t, s, frameAt(1), raw)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, barcode.TypeQR, res.Detections[0].Type)
	assert.Equal(t, geometry.Rect{X: 40, Y: 40, Width: 40, Height: 40}, res.Detections[0].BoundingBox)
}

func TestSession_Info(t *testing.T) {
	s, _ := startSession(t, NewBuilder().
		WithCodeTypes(barcode.TypeQR).
		WithRegionOfInterest(&geometry.Rect{Width: 10, Height: 10}))

	info := s.Info()
	assert.Equal(t, s.ID(), info["id"])
	assert.Equal(t, "continuous", info["scan_mode"])
	assert.Equal(t, "cover", info["scale_mode"])
	assert.Equal(t, "reflect", info["platform"])
	assert.Equal(t, []string{"qr"}, info["code_types"])
	assert.Contains(t, info, "region_of_interest")
	assert.Contains(t, info, "stats")
}

func TestSession_ConcurrentHostCalls(t *testing.T) {
	s, _ := startSession(t, NewBuilder().WithLayout(geometry.Size{Width: 400, Height: 400}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.SetLayout(geometry.Size{Width: float64(300 + i%2*100), Height: 400})
			s.SetScanEnabled(i%3 != 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 200 {
			_, _ = s.ProcessFrame(context.Background(), frameAt(i), codes("A"))
		}
	}()
	wg.Wait()
	flush(t, s)
}
