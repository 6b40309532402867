// Package gpio registers button lines as edge interrupt sources and drives
// indicator outputs. The real implementation uses the Linux GPIO character
// device; the fake one lets tests fire edges by hand.
package gpio

import "github.com/sweeney/button-dispatch/internal/isr"

// DefaultChip is the GPIO chip on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Line describes an input line to watch.
type Line struct {
	Offset int
	// ActiveLow buttons pull the line to ground when pressed: the line is
	// biased high and the falling edge is the press. Otherwise the line is
	// biased low and the rising edge is the press.
	ActiveLow bool
}

// Watcher maps hardware edge interrupts to producers.
type Watcher interface {
	// Watch calls p.Fire from the edge handler for every press on l.
	Watch(l Line, p *isr.Producer) error

	// Close releases every watched line.
	Close() error
}

// Reader reads raw line values.
type Reader interface {
	Read(offsets []int) ([]int, error)
}

// Output is a single driven line, such as an LED.
type Output interface {
	SetValue(v int) error
}

// Outputs hands out output lines.
type Outputs interface {
	Output(offset int) (Output, error)
}
