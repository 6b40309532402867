// Package status provides a thread-safe status tracker for the daemon.
// It is read by the HTTP handlers and by heartbeat publishing.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/button-dispatch/internal/dispatch"
	"github.com/sweeney/button-dispatch/internal/event"
)

// Config contains daemon configuration for display.
type Config struct {
	QueueCapacity int
	DebounceMs    int64
	TimeoutMs     int64 // dispatcher wait; -1 means forever
	PollMs        int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
}

// QueueStats is the sampled state of the event queue.
type QueueStats struct {
	Depth    int
	Capacity int
	Drops    uint64
	// HighWater is the deepest the queue has been observed at a sample.
	HighWater int
}

// DispatchStats mirrors the dispatcher counters.
type DispatchStats struct {
	Received   uint64
	Dispatched uint64
	Debounced  uint64
	Unknown    uint64
	Timeouts   uint64
	Failed     uint64
}

// Source is the per-source view shown on the status page.
type Source struct {
	ID         uint8
	Name       string
	Pin        int
	Action     string
	Dispatched uint64
	Debounced  uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; Sources is a fresh copy.
type Snapshot struct {
	InstanceID    string
	Queue         QueueStats
	Dispatch      DispatchStats
	Sources       []Source
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	// MQTTBuffered counts messages held for replay while the broker is
	// unreachable.
	MQTTBuffered int
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	sources map[uint8]Source
	now     func() time.Time
}

// NewTracker creates a Tracker with a fresh instance ID.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			InstanceID: uuid.NewString(),
			StartTime:  startTime,
			Config:     cfg,
			Queue:      QueueStats{Capacity: cfg.QueueCapacity},
		},
		sources: make(map[uint8]Source),
		now:     time.Now,
	}
}

// AddSource registers a configured source for display.
func (t *Tracker) AddSource(s Source) {
	t.mu.Lock()
	t.sources[s.ID] = s
	t.mu.Unlock()
}

// UpdateQueue records a queue sample and tracks the high-water mark.
func (t *Tracker) UpdateQueue(depth, capacity int, drops uint64) {
	t.mu.Lock()
	hw := t.snap.Queue.HighWater
	if depth > hw {
		hw = depth
	}
	t.snap.Queue = QueueStats{Depth: depth, Capacity: capacity, Drops: drops, HighWater: hw}
	t.mu.Unlock()
}

// UpdateDispatch records dispatcher totals and per-source counts.
// Counts for sources that were never registered are ignored.
func (t *Tracker) UpdateDispatch(st dispatch.Stats) {
	t.mu.Lock()
	t.snap.Dispatch = DispatchStats{
		Received:   st.Received,
		Dispatched: st.Dispatched,
		Debounced:  st.Debounced,
		Unknown:    st.Unknown,
		Timeouts:   st.Timeouts,
		Failed:     st.Failed,
	}
	for id, s := range t.sources {
		c := st.Sources[event.SourceID(id)]
		s.Dispatched = c.Dispatched
		s.Debounced = c.Debounced
		t.sources[id] = s
	}
	t.mu.Unlock()
}

// SetMQTTBuffered records how many messages the publisher is holding.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state, with sources
// ordered by ID.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sources = make([]Source, 0, len(t.sources))
	for _, src := range t.sources {
		s.Sources = append(s.Sources, src)
	}
	t.mu.RUnlock()

	sort.Slice(s.Sources, func(i, j int) bool { return s.Sources[i].ID < s.Sources[j].ID })
	s.Now = t.now()
	return s
}
