// Package action holds the application handlers that run for accepted
// presses: LED toggling, MQTT publishing and logging.
package action

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sweeney/button-dispatch/internal/config"
	"github.com/sweeney/button-dispatch/internal/dispatch"
	"github.com/sweeney/button-dispatch/internal/event"
	"github.com/sweeney/button-dispatch/internal/gpio"
	"github.com/sweeney/button-dispatch/internal/logging"
	"github.com/sweeney/button-dispatch/internal/mqtt"
)

// Counter counts presses.
type Counter struct {
	n atomic.Uint64
}

// Handle increments the count.
func (c *Counter) Handle(event.Event) error {
	c.n.Add(1)
	return nil
}

// Value returns the number of presses so far.
func (c *Counter) Value() uint64 {
	return c.n.Load()
}

// Toggle flips an output line on every press.
type Toggle struct {
	Out gpio.Output
	on  bool
}

// Handle drives the line to the opposite of its last value. If the write
// fails the remembered state is left alone.
func (t *Toggle) Handle(event.Event) error {
	next := !t.on
	v := 0
	if next {
		v = 1
	}
	if err := t.Out.SetValue(v); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	t.on = next
	return nil
}

// Publish sends each press to MQTT.
type Publish struct {
	Publisher mqtt.Publisher
	Name      string
	Now       func() time.Time
	Count     func() uint64
}

// Handle publishes the press.
func (p *Publish) Handle(ev event.Event) error {
	press := mqtt.Press{
		Time:   p.Now(),
		Source: uint8(ev.Source),
		Name:   p.Name,
	}
	if p.Count != nil {
		press.Count = p.Count()
	}
	if err := p.Publisher.Publish(press); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Log writes a line per press.
type Log struct {
	Logger *slog.Logger
	Name   string
	Count  func() uint64
}

// Handle logs the press.
func (l *Log) Handle(ev event.Event) error {
	args := []any{"source", ev.Source, "name", l.Name, "at", ev.At}
	if l.Count != nil {
		args = append(args, "count", l.Count())
	}
	l.Logger.Info("button pressed", args...)
	return nil
}

// Chain runs handlers in order. Every handler runs even if an earlier one
// fails; the errors are joined.
type Chain []dispatch.Handler

// Handle runs the chain.
func (c Chain) Handle(ev event.Event) error {
	var errs []error
	for _, h := range c {
		if err := h.Handle(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deps are the collaborators handlers may need.
type Deps struct {
	Outputs   gpio.Outputs
	Publisher mqtt.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Build assembles the handler for one configured source. The press counter
// always runs first so later actions see the updated count.
func Build(src config.Source, deps Deps) (dispatch.Handler, *Counter, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	counter := &Counter{}
	chain := Chain{counter}
	for _, name := range src.Actions {
		switch name {
		case config.ActionToggle:
			if deps.Outputs == nil {
				return nil, nil, fmt.Errorf("source %d: toggle needs gpio outputs", src.ID)
			}
			if src.LEDPin == nil {
				return nil, nil, fmt.Errorf("source %d: %w", src.ID, config.ErrMissingLED)
			}
			out, err := deps.Outputs.Output(*src.LEDPin)
			if err != nil {
				return nil, nil, fmt.Errorf("source %d: %w", src.ID, err)
			}
			chain = append(chain, &Toggle{Out: out})
		case config.ActionPublish:
			if deps.Publisher == nil {
				return nil, nil, fmt.Errorf("source %d: publish needs an mqtt publisher", src.ID)
			}
			chain = append(chain, &Publish{Publisher: deps.Publisher, Name: src.Name, Now: deps.Now, Count: counter.Value})
		case config.ActionLog:
			chain = append(chain, &Log{Logger: deps.Logger, Name: src.Name, Count: counter.Value})
		default:
			return nil, nil, fmt.Errorf("source %d: %w: %q", src.ID, config.ErrUnknownAction, name)
		}
	}
	return chain, counter, nil
}
