// Package queue provides a fixed-capacity FIFO of events shared between
// interrupt-context producers and a single task-context consumer.
//
// Producers hold a queue.ISR, which only exposes the non-blocking push.
// The consumer holds a queue.Receiver. Only *Queue itself has both.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/button-dispatch/internal/event"
)

// Forever makes Pop wait until an event arrives or the context ends.
const Forever time.Duration = -1

var (
	// ErrFull is returned by TryPushFromISR when every slot is occupied.
	// The event is dropped and counted.
	ErrFull = errors.New("queue: full")

	// ErrTimeout is returned by Pop when its timeout elapses first.
	ErrTimeout = errors.New("queue: timed out")

	// ErrClosed is returned by pushes after Close, and by Pop once a
	// closed queue has been drained.
	ErrClosed = errors.New("queue: closed")
)

// ISR is the push side usable from interrupt context: it never blocks and
// never allocates.
type ISR interface {
	// TryPushFromISR enqueues ev or fails immediately with ErrFull.
	// woken reports that a consumer was blocked waiting and has been
	// signalled, so the caller should yield once it returns.
	TryPushFromISR(ev event.Event) (woken bool, err error)
}

// Receiver is the consumer side. Pop may suspend the caller.
type Receiver interface {
	Pop(ctx context.Context, timeout time.Duration) (event.Event, error)
}

// Queue is a ring buffer of events. The mutex guards a handful of index
// updates only; nothing blocks while holding it.
type Queue struct {
	mu       sync.Mutex
	buf      []event.Event
	capacity int
	head     int // next read position
	count    int
	waiting  int // consumers blocked in Pop
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}

	drops atomic.Uint64
}

// New creates a queue holding up to capacity events.
func New(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, errors.New("queue: capacity must be at least 1")
	}
	return &Queue{
		buf:      make([]event.Event, capacity),
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// TryPushFromISR implements ISR.
func (q *Queue) TryPushFromISR(ev event.Event) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	if q.count == q.capacity {
		q.mu.Unlock()
		q.drops.Add(1)
		return false, ErrFull
	}
	q.put(ev)
	woken := q.waiting > 0
	q.mu.Unlock()

	signal(q.notEmpty)
	return woken, nil
}

// Push enqueues ev from task context, waiting for a free slot if the queue
// is full. It must not be called from an interrupt handler.
func (q *Queue) Push(ctx context.Context, ev event.Event) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.count < q.capacity {
			q.put(ev)
			more := q.count < q.capacity
			q.mu.Unlock()
			signal(q.notEmpty)
			if more {
				signal(q.notFull)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes the oldest event. A negative timeout (Forever) waits without
// limit; zero polls once.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (event.Event, error) {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if q.count > 0 {
			ev := q.take()
			more := q.count > 0
			q.mu.Unlock()
			signal(q.notFull)
			if more {
				// Pass the wakeup on in case another consumer is parked.
				signal(q.notEmpty)
			}
			return ev, nil
		}
		if q.closed {
			q.mu.Unlock()
			return event.Event{}, ErrClosed
		}
		q.waiting++
		q.mu.Unlock()

		var err error
		select {
		case <-q.notEmpty:
		case <-q.done:
		case <-expired:
			err = ErrTimeout
		case <-ctx.Done():
			err = ctx.Err()
		}

		q.mu.Lock()
		q.waiting--
		q.mu.Unlock()

		if err != nil {
			return event.Event{}, err
		}
	}
}

// Close rejects further pushes and wakes blocked callers. Events already
// queued can still be popped; after that Pop returns ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len returns the number of events waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Spaces returns the number of free slots.
func (q *Queue) Spaces() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - q.count
}

// Drops returns how many pushes were rejected because the queue was full.
func (q *Queue) Drops() uint64 {
	return q.drops.Load()
}

// put and take require q.mu.
func (q *Queue) put(ev event.Event) {
	q.buf[(q.head+q.count)%q.capacity] = ev
	q.count++
}

func (q *Queue) take() event.Event {
	ev := q.buf[q.head]
	q.buf[q.head] = event.Event{}
	q.head = (q.head + 1) % q.capacity
	q.count--
	return ev
}

// signal does a non-blocking send on a capacity-1 channel. A pending token
// already covers the wakeup.
func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
