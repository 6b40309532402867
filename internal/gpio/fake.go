package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/button-dispatch/internal/isr"
)

// FakeChip is a test double for Chip. Edges are injected with Fire.
type FakeChip struct {
	mu sync.Mutex

	// Watched maps line offset to the registered line and producer.
	Watched map[int]FakeWatch

	// Outputs maps line offset to the handed-out output.
	Outputs map[int]*FakeOutput

	// Values are returned by Read, keyed by offset.
	Values map[int]int

	// WatchError, OutputError and ReadError, if set, are returned by the
	// corresponding method.
	WatchError  error
	OutputError error
	ReadError   error

	// Closed tracks if Close was called.
	Closed bool
}

// FakeWatch records one Watch call.
type FakeWatch struct {
	Line     Line
	Producer *isr.Producer
}

// NewFakeChip creates an empty FakeChip.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		Watched: make(map[int]FakeWatch),
		Outputs: make(map[int]*FakeOutput),
		Values:  make(map[int]int),
	}
}

// Watch records the registration.
func (f *FakeChip) Watch(l Line, p *isr.Producer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	if _, ok := f.Watched[l.Offset]; ok {
		return fmt.Errorf("request input pin %d: line busy", l.Offset)
	}
	f.Watched[l.Offset] = FakeWatch{Line: l, Producer: p}
	return nil
}

// Fire simulates an edge on offset at monotonic time at, as the real edge
// handler would. It reports whether the event was queued.
func (f *FakeChip) Fire(offset int, at time.Duration) (bool, error) {
	f.mu.Lock()
	w, ok := f.Watched[offset]
	f.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("pin %d not watched", offset)
	}
	return w.Producer.Fire(at), nil
}

// Output returns a FakeOutput for offset.
func (f *FakeChip) Output(offset int) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OutputError != nil {
		return nil, f.OutputError
	}
	out := &FakeOutput{}
	f.Outputs[offset] = out
	return out, nil
}

// Read returns the scripted values.
func (f *FakeChip) Read(offsets []int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if len(offsets) == 0 {
		return nil, errors.New("no pins requested")
	}
	values := make([]int, len(offsets))
	for i, o := range offsets {
		values[i] = f.Values[o]
	}
	return values, nil
}

// Close marks the chip as closed.
func (f *FakeChip) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeOutput records values written to it.
type FakeOutput struct {
	mu      sync.Mutex
	History []int

	// SetError, if set, is returned by SetValue.
	SetError error
}

// SetValue records v.
func (o *FakeOutput) SetValue(v int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.SetError != nil {
		return o.SetError
	}
	o.History = append(o.History, v)
	return nil
}

// Value returns the last value written, or 0.
func (o *FakeOutput) Value() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.History) == 0 {
		return 0
	}
	return o.History[len(o.History)-1]
}
