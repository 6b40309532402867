//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/button-dispatch/internal/isr"
)

const consumer = "button-dispatch"

// Chip watches and drives lines on a GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip

	mu      sync.Mutex
	inputs  []*gpiocdev.Line
	outputs []*gpiocdev.Line
}

// Open opens the named chip, e.g. "gpiochip0".
func Open(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: chip}, nil
}

// Watch requests l as an edge-detecting input. The kernel timestamps each
// edge on CLOCK_MONOTONIC and gpiocdev delivers it to the handler, which
// forwards it to p without blocking.
func (c *Chip) Watch(l Line, p *isr.Producer) error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			p.Fire(evt.Timestamp)
		}),
	}
	if l.ActiveLow {
		opts = append(opts, gpiocdev.WithPullUp, gpiocdev.WithFallingEdge)
	} else {
		opts = append(opts, gpiocdev.WithPullDown, gpiocdev.WithRisingEdge)
	}

	line, err := c.chip.RequestLine(l.Offset, opts...)
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", l.Offset, err)
	}

	c.mu.Lock()
	c.inputs = append(c.inputs, line)
	c.mu.Unlock()
	return nil
}

// Output requests offset as an output driven low.
func (c *Chip) Output(offset int) (Output, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}

	c.mu.Lock()
	c.outputs = append(c.outputs, line)
	c.mu.Unlock()
	return line, nil
}

// Read returns the current raw values of the given lines.
func (c *Chip) Read(offsets []int) ([]int, error) {
	lines, err := c.chip.RequestLines(offsets, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("request pins %v: %w", offsets, err)
	}
	defer lines.Close()

	values := make([]int, len(offsets))
	if err := lines.Values(values); err != nil {
		return nil, fmt.Errorf("read pins %v: %w", offsets, err)
	}
	return values, nil
}

// Close releases all lines and the chip. Outputs are reconfigured to input
// with pull-down (the Pi boot default) first, so nothing is left driven.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, l := range c.outputs {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.Offset(), err))
		}
	}
	for _, l := range c.inputs {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.Offset(), err))
		}
	}
	c.inputs, c.outputs = nil, nil

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
