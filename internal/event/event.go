// Package event defines the fixed-size records that flow from interrupt
// producers to the dispatcher, and the monotonic clock used to stamp them.
package event

import (
	"fmt"
	"time"
)

// SourceID identifies an input source (one button line).
// The range is small and known at configuration time.
type SourceID uint8

// MaxSources is the number of distinct SourceID values.
const MaxSources = 256

func (s SourceID) String() string {
	return fmt.Sprintf("src%d", uint8(s))
}

// Event is a single input edge. It is plain data, copied by value and
// never mutated after it is produced.
type Event struct {
	Source SourceID
	// At is a monotonic timestamp (offset on CLOCK_MONOTONIC or on the
	// clock passed to the dispatcher). Only meaningful when Stamped is set.
	At      time.Duration
	Stamped bool
}

// New returns an event stamped at the given monotonic time.
func New(src SourceID, at time.Duration) Event {
	return Event{Source: src, At: at, Stamped: true}
}

// Clock returns a monotonic, non-decreasing time offset.
type Clock func() time.Duration

// NewClock returns a Clock counting from the moment it was created.
// time.Since uses the monotonic reading, so wall clock steps don't affect it.
func NewClock() Clock {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
