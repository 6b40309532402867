// Package dispatch runs the consumer side of the event queue: it waits for
// events, debounces them per source and hands accepted ones to the handler
// registered for that source.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/button-dispatch/internal/debounce"
	"github.com/sweeney/button-dispatch/internal/event"
	"github.com/sweeney/button-dispatch/internal/logging"
	"github.com/sweeney/button-dispatch/internal/queue"
)

// Handler acts on an accepted event. It runs on the dispatcher goroutine,
// never from interrupt context. A returned error is logged and counted.
type Handler interface {
	Handle(ev event.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev event.Event) error

// Handle calls f(ev).
func (f HandlerFunc) Handle(ev event.Event) error {
	return f(ev)
}

// Outcome describes what one Step did with the event it waited for.
type Outcome int

const (
	Stopped Outcome = iota
	TimedOut
	Debounced
	Unknown
	Dispatched
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Stopped:
		return "stopped"
	case TimedOut:
		return "timed_out"
	case Debounced:
		return "debounced"
	case Unknown:
		return "unknown"
	case Dispatched:
		return "dispatched"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config controls a Dispatcher. Zero values get defaults in New.
type Config struct {
	// Timeout bounds each wait on the queue. queue.Forever (or 0) waits
	// without limit.
	Timeout time.Duration

	// Clock stamps events that arrive without a timestamp.
	Clock event.Clock

	Logger *slog.Logger

	// OnIdle is called after each timed-out wait.
	OnIdle func()
}

// Dispatcher owns the debounce filter and the routing table. Only Stats may
// be called from other goroutines.
type Dispatcher struct {
	rx      queue.Receiver
	filter  *debounce.Filter
	routes  map[event.SourceID]Handler
	timeout time.Duration
	clock   event.Clock
	logger  *slog.Logger
	onIdle  func()
	stats   *counters
}

// New creates a dispatcher reading from rx. routes is copied.
func New(cfg Config, rx queue.Receiver, filter *debounce.Filter, routes map[event.SourceID]Handler) *Dispatcher {
	d := &Dispatcher{
		rx:      rx,
		filter:  filter,
		routes:  make(map[event.SourceID]Handler, len(routes)),
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		onIdle:  cfg.OnIdle,
		stats:   newCounters(),
	}
	for src, h := range routes {
		d.routes[src] = h
	}
	if d.timeout == 0 {
		d.timeout = queue.Forever
	}
	if d.clock == nil {
		d.clock = event.NewClock()
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Run loops until ctx is cancelled or the queue is closed and drained.
// Both count as a clean stop and return nil; any other queue error is
// returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", "routes", len(d.routes), "tracked", d.filter.Sources(), "timeout", d.timeout)
	for {
		outcome, err := d.Step(ctx)
		if outcome == Stopped {
			d.logger.Info("dispatcher stopped")
			return err
		}
	}
}

// Step waits for one event and processes it to completion.
func (d *Dispatcher) Step(ctx context.Context) (Outcome, error) {
	ev, err := d.rx.Pop(ctx, d.timeout)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrTimeout):
		d.stats.timeouts.Add(1)
		d.logger.Debug("no events within timeout")
		if d.onIdle != nil {
			d.onIdle()
		}
		return TimedOut, nil
	case errors.Is(err, queue.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return Stopped, nil
	default:
		return Stopped, fmt.Errorf("pop: %w", err)
	}

	d.stats.received.Add(1)
	if !ev.Stamped {
		ev.At = d.clock()
		ev.Stamped = true
	}

	if !d.filter.Accept(ev.Source, ev.At) {
		d.stats.debounced.Add(1)
		d.stats.source(ev.Source).debounced.Add(1)
		d.logger.Debug("debounced", "source", ev.Source, "at", ev.At)
		return Debounced, nil
	}

	h, ok := d.routes[ev.Source]
	if !ok {
		d.stats.unknown.Add(1)
		d.logger.Warn("event from unknown source", "source", ev.Source, "at", ev.At)
		return Unknown, nil
	}

	d.stats.dispatched.Add(1)
	d.stats.source(ev.Source).dispatched.Add(1)
	if err := h.Handle(ev); err != nil {
		d.stats.failed.Add(1)
		d.logger.Error("handler failed", "source", ev.Source, "error", err)
		return Failed, nil
	}
	return Dispatched, nil
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats.snapshot()
}
