package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering and event stamping.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; overflow is counted in Dropped.
	DropIfFull bool
	Now        func() time.Time
	Logger     *slog.Logger
}

type queued struct {
	ctx   context.Context
	event Event
}

// Dispatcher stamps audit events and forwards them to a sink from a single
// background goroutine, preserving emission order.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ids  *IDSource

	// mu guards closed and the send side of queue.
	mu      sync.RWMutex
	closed  bool
	queue   chan queued
	drained chan struct{}

	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled; every method is safe on a
// nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		ids:     NewIDSource(),
		queue:   make(chan queued, cfg.BufferSize),
		drained: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.drained)
	for q := range d.queue {
		d.sink.Emit(q.ctx, q.event)
	}
}

// Emit fills in a missing ID and Timestamp and queues the event. Values on
// ctx reach the sink; its cancellation only bounds a blocking enqueue.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}
	if event.ID == "" {
		event.ID = d.ids.Next(event.Timestamp)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	q := queued{ctx: context.WithoutCancel(ctx), event: event}
	if d.cfg.DropIfFull {
		select {
		case d.queue <- q:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops intake and waits until every queued event reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.drained
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.drained
	if n := d.dropped.Load(); n > 0 && d.cfg.Logger != nil {
		d.cfg.Logger.Warn("audit dispatcher closed with dropped events", "dropped", n)
	}
}

// Dropped reports events lost to a full buffer or a cancelled emitter.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
