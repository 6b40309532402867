//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/button-dispatch/internal/isr"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Open returns an error on non-Linux platforms.
func Open(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (c *Chip) Watch(l Line, p *isr.Producer) error {
	return errUnsupported
}

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(offset int) (Output, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (c *Chip) Read(offsets []int) ([]int, error) {
	return nil, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
