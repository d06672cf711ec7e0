package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docketline/internal/domain"
	"docketline/internal/metrics"
)

const (
	defaultOutboxSize      = 256
	defaultDeliveryTimeout = 5 * time.Second
)

// Outbox decouples event emission from the state change that caused it.
// Emit never blocks: when the buffer is full the event is dropped and logged.
// A single goroutine delivers to each sink in turn.
type Outbox struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	ch     chan domain.Event
	closed bool
	done   chan struct{}
	once   sync.Once
}

type OutboxOptions struct {
	Size            int
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

func NewOutbox(opts OutboxOptions, sinks ...Sink) *Outbox {
	size := opts.Size
	if size <= 0 {
		size = defaultOutboxSize
	}
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		sinks:   sinks,
		logger:  logger,
		metrics: opts.Metrics,
		timeout: timeout,
		ch:      make(chan domain.Event, size),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery goroutine. Calling it more than once is a no-op.
func (o *Outbox) Start() {
	o.once.Do(func() {
		go o.run()
	})
}

func (o *Outbox) Emit(ctx context.Context, evt domain.Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.logger.WarnContext(ctx, "outbox closed; event dropped", "type", evt.Type, "entity_id", evt.EntityID)
		o.metrics.IncOutboxDropped()
		return
	}
	select {
	case o.ch <- evt:
	default:
		o.logger.WarnContext(ctx, "outbox full; event dropped", "type", evt.Type, "entity_id", evt.EntityID)
		o.metrics.IncOutboxDropped()
	}
}

// Close stops accepting events and waits until buffered events are delivered
// or ctx expires.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
	o.mu.Unlock()
	o.Start()
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) run() {
	defer close(o.done)
	for evt := range o.ch {
		for _, sink := range o.sinks {
			o.deliver(sink, evt)
		}
	}
}

func (o *Outbox) deliver(sink Sink, evt domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panic: %v", r)
			}
		}()
		return sink.Deliver(ctx, evt)
	}()
	if err != nil {
		o.metrics.IncSinkFailure(sink.Name())
		o.logger.Warn("event delivery failed", "sink", sink.Name(), "type", evt.Type, "entity_id", evt.EntityID, "err", err)
	}
}
