package dispatch

import (
	"sync/atomic"

	"github.com/sweeney/button-dispatch/internal/event"
)

// Stats is a point-in-time copy of dispatcher counters.
type Stats struct {
	Received   uint64
	Dispatched uint64
	Debounced  uint64
	Unknown    uint64
	Timeouts   uint64
	Failed     uint64

	// Sources holds per-source counts for every source seen so far.
	Sources map[event.SourceID]SourceStats
}

// SourceStats counts outcomes for one source.
type SourceStats struct {
	Dispatched uint64
	Debounced  uint64
}

type sourceCounters struct {
	dispatched atomic.Uint64
	debounced  atomic.Uint64
}

// counters are written by the dispatcher goroutine and read by the status
// monitor, so every field is atomic.
type counters struct {
	received   atomic.Uint64
	dispatched atomic.Uint64
	debounced  atomic.Uint64
	unknown    atomic.Uint64
	timeouts   atomic.Uint64
	failed     atomic.Uint64

	sources [event.MaxSources]sourceCounters
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) source(src event.SourceID) *sourceCounters {
	return &c.sources[src]
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Received:   c.received.Load(),
		Dispatched: c.dispatched.Load(),
		Debounced:  c.debounced.Load(),
		Unknown:    c.unknown.Load(),
		Timeouts:   c.timeouts.Load(),
		Failed:     c.failed.Load(),
		Sources:    make(map[event.SourceID]SourceStats),
	}
	for i := range c.sources {
		sc := SourceStats{
			Dispatched: c.sources[i].dispatched.Load(),
			Debounced:  c.sources[i].debounced.Load(),
		}
		if sc.Dispatched > 0 || sc.Debounced > 0 {
			s.Sources[event.SourceID(i)] = sc
		}
	}
	return s
}
