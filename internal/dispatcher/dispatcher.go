package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spatialplot/globeviz/internal/channel"
)

// Event is one published occurrence, typically a completed reconciliation
// pass. Payload carries the event's data (model.PassResult for pass events).
type Event struct {
	Name    string
	Payload any
	Time    time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers. Multiple handlers may
// subscribe to the same event name; Publish fans the event out to all of
// them.
type Dispatcher struct {
	handlers map[string][]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]channel.Channel[Event]
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		buffers:  make(map[string]channel.Channel[Event]),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(buf.Len()),
					metric.WithAttributes(attribute.String("event", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event name with optional
// configuration. sink names the handler in logs and metric attributes so
// two subscribers to the same event stay distinguishable.
func (d *Dispatcher) Register(event, sink string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(event, sink, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(event, sink, handler)
	}

	d.handlers[event] = append(d.handlers[event], handler)
}

// Publish delivers the event to every registered handler. Handler errors
// are logged and counted but never stop delivery to the remaining
// handlers; a pass must reach every sink that can take it.
func (d *Dispatcher) Publish(e Event) error {
	hs, ok := d.handlers[e.Name]
	if !ok {
		return fmt.Errorf("no handlers for event: %s", e.Name)
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, h := range hs {
		if _, err := h(e); err != nil {
			d.logger.Error("Event handler failed", "event", e.Name, "error", err)
		}
	}
	return nil
}

// HasHandler returns true if at least one handler is registered for the event.
func (d *Dispatcher) HasHandler(event string) bool {
	return len(d.handlers[event]) > 0
}

// QueueDepth reports the total number of events waiting in handler buffers.
func (d *Dispatcher) QueueDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	depth := 0
	for _, buf := range d.buffers {
		depth += buf.Len()
	}
	return depth
}

func (d *Dispatcher) withBuffer(event, sink string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := channel.New[Event](size)

	d.mu.Lock()
	d.buffers[event+"/"+sink] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("sink", sink),
	)

	go func() {
		for e := range buffer.Receive() {
			if _, err := h(e); err != nil {
				d.logger.Error("Buffered handler failed",
					"event", event, "sink", sink, "error", err)
			}
			d.processed.Add(context.Background(), 1, attrs)
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			buffer.Send(e)
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		if !buffer.TrySend(e) {
			d.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s/%s", event, sink)
		}
		return "queued", nil
	}
}

func (d *Dispatcher) withLogging(event, sink string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "event", event, "sink", sink)

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "event", event, "sink", sink, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "event", event, "sink", sink, "duration", time.Since(start))
		}

		return result, err
	}
}
