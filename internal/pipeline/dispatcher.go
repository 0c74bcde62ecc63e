package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/highlight"
)

type eventKind int

const (
	eventScanned eventKind = iota
	eventCleared
	eventBarrier
)

type event struct {
	kind       eventKind
	detections []barcode.Detection
	frame      barcode.Frame
	ack        chan struct{}
}

// dispatcher hands frame-path outputs to the Sink on its own goroutine.
// Scan and cleared events are delivered in order from a bounded queue;
// highlights are latest-wins. Enqueueing never blocks the frame path.
type dispatcher struct {
	sink   Sink
	limit  int
	logger *slog.Logger

	mu         sync.Mutex
	queue      []event
	pending    int
	highlights []highlight.Highlight
	hasHL      bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

func newDispatcher(sink Sink, limit int, logger *slog.Logger) *dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	d := &dispatcher{
		sink:   sink,
		limit:  limit,
		logger: logger,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *dispatcher) scanned(ds []barcode.Detection, frame barcode.Frame) {
	d.push(event{kind: eventScanned, detections: ds, frame: frame})
}

func (d *dispatcher) cleared(frame barcode.Frame) {
	d.push(event{kind: eventCleared, frame: frame})
}

func (d *dispatcher) push(ev event) {
	d.mu.Lock()
	if d.pending >= d.limit {
		d.dropOldestLocked()
	}
	d.queue = append(d.queue, ev)
	d.pending++
	d.mu.Unlock()
	d.wake()
}

// dropOldestLocked removes the oldest scan or cleared event. Barriers stay.
func (d *dispatcher) dropOldestLocked() {
	for i, ev := range d.queue {
		if ev.kind == eventBarrier {
			continue
		}
		d.queue = append(d.queue[:i], d.queue[i+1:]...)
		d.pending--
		eventsDropped.Inc()
		d.logger.Warn("Scan event queue full, dropping oldest event", "limit", d.limit)
		return
	}
}

func (d *dispatcher) setHighlights(hs []highlight.Highlight) {
	d.mu.Lock()
	d.highlights = hs
	d.hasHL = true
	d.mu.Unlock()
	d.wake()
}

func (d *dispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// flush waits until everything enqueued before the call has been delivered.
func (d *dispatcher) flush(ctx context.Context) error {
	ack := make(chan struct{})
	d.mu.Lock()
	d.queue = append(d.queue, event{kind: eventBarrier, ack: ack})
	d.mu.Unlock()
	d.wake()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrSessionClosed
	}
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.notify:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		queue := d.queue
		d.queue = nil
		d.pending = 0
		hs, hasHL := d.highlights, d.hasHL
		d.highlights, d.hasHL = nil, false
		d.mu.Unlock()

		if len(queue) == 0 && !hasHL {
			return
		}
		var acks []chan struct{}
		for _, ev := range queue {
			if ev.kind == eventBarrier {
				acks = append(acks, ev.ack)
				continue
			}
			d.deliver(ev)
		}
		if hasHL {
			d.deliverHighlights(hs)
		}
		for _, ack := range acks {
			close(ack)
		}
	}
}

func (d *dispatcher) deliver(ev event) {
	defer d.recoverSink()
	switch ev.kind {
	case eventScanned:
		d.sink.OnScanned(ev.detections, ev.frame)
	case eventCleared:
		d.sink.OnCleared(ev.frame)
	}
}

func (d *dispatcher) deliverHighlights(hs []highlight.Highlight) {
	defer d.recoverSink()
	d.sink.OnHighlights(hs)
}

func (d *dispatcher) recoverSink() {
	if r := recover(); r != nil {
		d.logger.Error("Sink panicked", "panic", r)
	}
}

// close stops the goroutine after delivering what is already queued.
func (d *dispatcher) close() {
	close(d.done)
	d.wg.Wait()
}
