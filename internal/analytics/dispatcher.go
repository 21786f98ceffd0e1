// Package analytics forwards questionnaire navigation events to reporting
// backends without ever slowing down or failing the questionnaire.
package analytics

import (
	"context"
	"sync"
	"time"

	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/metrics"
	"tax-intake/internal/questionnaire"
)

// Sink delivers one event to a backend.
type Sink interface {
	Name() string
	Send(ctx context.Context, e questionnaire.Event) error
}

type DispatcherOptions struct {
	QueueSize int
	Timeout   time.Duration
	Logger    logger.Logger
}

// Dispatcher queues events and delivers them on a single background worker.
// Emit never blocks: when the queue is full the event is dropped.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan questionnaire.Event
	done   chan struct{}
}

func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	d := &Dispatcher{
		sink:    sink,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		queue:   make(chan questionnaire.Event, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit implements questionnaire.EventSink.
func (d *Dispatcher) Emit(e questionnaire.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.AnalyticsEventsDropped.WithLabelValues("closed").Inc()
		return
	}

	select {
	case d.queue <- e:
	default:
		metrics.AnalyticsEventsDropped.WithLabelValues("queue_full").Inc()
		d.logger.Warn("Analytics queue full, event dropped", map[string]interface{}{
			"sessionId": e.SessionID,
			"type":      string(e.Type),
		})
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e questionnaire.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Send(ctx, e); err != nil {
		stdErr := errors.NewAnalyticsEmitFailedError(d.sink.Name(), err)
		metrics.AnalyticsEventsDropped.WithLabelValues("sink_error").Inc()
		d.logger.Warn("Analytics event not delivered", map[string]interface{}{
			"sink":      d.sink.Name(),
			"sessionId": e.SessionID,
			"type":      string(e.Type),
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
}
