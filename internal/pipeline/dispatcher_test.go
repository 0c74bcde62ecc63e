package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSink blocks in OnScanned until released, so the queue can fill up.
type gatedSink struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	values []string
	once   sync.Once
}

func (g *gatedSink) OnScanned(ds []barcode.Detection, _ barcode.Frame) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, ds[0].Value)
}

func (g *gatedSink) OnCleared(barcode.Frame)            {}
func (g *gatedSink) OnHighlights([]highlight.Highlight) {}

func det(value string) []barcode.Detection {
	return []barcode.Detection{{Value: value}}
}

func TestDispatcher_DropsOldestWhenFull(t *testing.T) {
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
	d := newDispatcher(sink, 2, slog.Default())
	defer d.close()

	d.scanned(det("0"), barcode.Frame{})
	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sink was never called")
	}

	d.scanned(det("1"), barcode.Frame{})
	d.scanned(det("2"), barcode.Frame{})
	d.scanned(det("3"), barcode.Frame{})
	close(sink.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.flush(ctx))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"0", "2", "3"}, sink.values)
}

func TestDispatcher_HighlightsAreLatestWins(t *testing.T) {
	var mu sync.Mutex
	var got [][]highlight.Highlight
	started := make(chan struct{})
	release := make(chan struct{})
	first := true

	sink := SinkFuncs{Highlights: func(hs []highlight.Highlight) {
		mu.Lock()
		wasFirst := first
		first = false
		got = append(got, hs)
		mu.Unlock()
		if wasFirst {
			close(started)
			<-release
		}
	}}
	d := newDispatcher(sink, 4, slog.Default())
	defer d.close()

	d.setHighlights([]highlight.Highlight{{Key: "a.0"}})
	<-started
	d.setHighlights([]highlight.Highlight{{Key: "b.0"}})
	d.setHighlights([]highlight.Highlight{{Key: "c.0"}})
	close(release)

	require.NoError(t, d.flush(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "a.0", got[0][0].Key)
	assert.Equal(t, "c.0", got[1][0].Key)
}

func TestDispatcher_RecoversFromSinkPanic(t *testing.T) {
	var cleared int
	var mu sync.Mutex
	sink := SinkFuncs{
		Scanned: func([]barcode.Detection, barcode.Frame) { panic("host bug") },
		Cleared: func(barcode.Frame) {
			mu.Lock()
			cleared++
			mu.Unlock()
		},
	}
	d := newDispatcher(sink, 4, slog.Default())
	defer d.close()

	d.scanned(det("x"), barcode.Frame{})
	d.cleared(barcode.Frame{})
	require.NoError(t, d.flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, cleared)
}

func TestDispatcher_FlushHonorsContext(t *testing.T) {
	release := make(chan struct{})
	sink := SinkFuncs{Scanned: func([]barcode.Detection, barcode.Frame) { <-release }}
	d := newDispatcher(sink, 4, slog.Default())
	defer d.close()
	defer close(release)

	d.scanned(det("x"), barcode.Frame{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.flush(ctx), context.DeadlineExceeded)
}

func TestNopSinkAndSinkFuncs(t *testing.T) {
	var s Sink = NopSink{}
	s.OnScanned(nil, barcode.Frame{})
	s.OnCleared(barcode.Frame{})
	s.OnHighlights(nil)

	s = SinkFuncs{}
	s.OnScanned(nil, barcode.Frame{})
	s.OnCleared(barcode.Frame{})
	s.OnHighlights(nil)
}
