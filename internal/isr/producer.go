// Package isr is the interrupt-side half of the event path: a tiny routine
// bound to one source that pushes into the queue and yields if that woke the
// consumer.
package isr

import (
	"runtime"
	"time"

	"github.com/sweeney/button-dispatch/internal/event"
	"github.com/sweeney/button-dispatch/internal/queue"
)

// Producer pushes events for a single source. It only holds the queue's
// non-blocking side, so it cannot wait on the queue.
type Producer struct {
	Queue  queue.ISR
	Source event.SourceID
	// Yield is called after a push that woke a waiting consumer.
	Yield func()
}

// New returns a Producer that yields with runtime.Gosched.
func New(q queue.ISR, src event.SourceID) *Producer {
	return &Producer{Queue: q, Source: src, Yield: runtime.Gosched}
}

// Fire pushes an event stamped at the given monotonic time. It reports
// whether the event was queued; a full queue drops it and the queue counts
// the drop.
func (p *Producer) Fire(at time.Duration) bool {
	return p.push(event.Event{Source: p.Source, At: at, Stamped: true})
}

// FireUnstamped pushes an event and leaves timestamping to the consumer.
func (p *Producer) FireUnstamped() bool {
	return p.push(event.Event{Source: p.Source})
}

func (p *Producer) push(ev event.Event) bool {
	woken, err := p.Queue.TryPushFromISR(ev)
	if err != nil {
		return false
	}
	if woken && p.Yield != nil {
		p.Yield()
	}
	return true
}
