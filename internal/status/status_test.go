package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-dispatch/internal/dispatch"
	"github.com/sweeney/button-dispatch/internal/event"
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestTracker() *Tracker {
	tr := NewTracker(testStart, Config{QueueCapacity: 10, DebounceMs: 30, TimeoutMs: -1, Broker: "tcp://localhost:1883", HTTPAddr: ":80"})
	tr.now = func() time.Time { return testStart.Add(90 * time.Second) }
	return tr
}

func TestNewTracker(t *testing.T) {
	tr := newTestTracker()

	snap := tr.Snapshot()
	assert.True(t, snap.StartTime.Equal(testStart))
	assert.Equal(t, 10, snap.Queue.Capacity)
	assert.Equal(t, ":80", snap.Config.HTTPAddr)
	assert.Len(t, snap.InstanceID, 36)
	assert.False(t, snap.MQTTConnected)
	assert.Empty(t, snap.Sources)
	assert.Equal(t, 90*time.Second, snap.Uptime())
}

func TestInstanceIDsDiffer(t *testing.T) {
	a := NewTracker(testStart, Config{})
	b := NewTracker(testStart, Config{})
	assert.NotEqual(t, a.Snapshot().InstanceID, b.Snapshot().InstanceID)
}

func TestUpdateQueueTracksHighWater(t *testing.T) {
	tr := newTestTracker()

	tr.UpdateQueue(3, 10, 0)
	tr.UpdateQueue(7, 10, 2)
	tr.UpdateQueue(1, 10, 2)

	q := tr.Snapshot().Queue
	assert.Equal(t, QueueStats{Depth: 1, Capacity: 10, Drops: 2, HighWater: 7}, q)
}

func TestUpdateDispatch(t *testing.T) {
	tr := newTestTracker()
	tr.AddSource(Source{ID: 2, Name: "aux", Pin: 27, Action: "count"})
	tr.AddSource(Source{ID: 1, Name: "boot", Pin: 17, Action: "toggle"})

	tr.UpdateDispatch(dispatch.Stats{
		Received:   10,
		Dispatched: 6,
		Debounced:  3,
		Unknown:    1,
		Sources: map[event.SourceID]dispatch.SourceStats{
			1: {Dispatched: 4, Debounced: 2},
			2: {Dispatched: 2, Debounced: 1},
			9: {Dispatched: 7},
		},
	})

	snap := tr.Snapshot()
	assert.Equal(t, uint64(10), snap.Dispatch.Received)
	assert.Equal(t, uint64(1), snap.Dispatch.Unknown)
	require.Len(t, snap.Sources, 2)
	assert.Equal(t, Source{ID: 1, Name: "boot", Pin: 17, Action: "toggle", Dispatched: 4, Debounced: 2}, snap.Sources[0])
	assert.Equal(t, uint8(2), snap.Sources[1].ID)
	assert.Equal(t, uint64(2), snap.Sources[1].Dispatched)
}

func TestSetMQTTConnected(t *testing.T) {
	tr := newTestTracker()
	tr.SetMQTTConnected(true)
	assert.True(t, tr.Snapshot().MQTTConnected)
	tr.SetMQTTConnected(false)
	assert.False(t, tr.Snapshot().MQTTConnected)
}

func TestSetMQTTBuffered(t *testing.T) {
	tr := newTestTracker()
	tr.SetMQTTBuffered(4)
	assert.Equal(t, 4, tr.Snapshot().MQTTBuffered)
	assert.Equal(t, 4, buildInner(tr.Snapshot()).MQTT.Buffered)
}

func TestSnapshotIsIndependent(t *testing.T) {
	tr := newTestTracker()
	tr.AddSource(Source{ID: 1, Name: "boot"})

	snap := tr.Snapshot()
	snap.Sources[0].Name = "changed"

	assert.Equal(t, "boot", tr.Snapshot().Sources[0].Name)
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.AddSource(Source{ID: 1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			tr.UpdateQueue(i%10, 10, uint64(i))
		}(i)
		go func() {
			defer wg.Done()
			tr.UpdateDispatch(dispatch.Stats{Received: 1})
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	tr := newTestTracker()
	tr.AddSource(Source{ID: 1, Name: "boot", Pin: 17, Action: "toggle"})
	tr.UpdateQueue(4, 10, 3)
	tr.SetMQTTConnected(true)

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	assert.Empty(t, sj.Status.Event)
	assert.Equal(t, int64(90), sj.Status.UptimeSeconds)
	assert.Equal(t, "2026-01-01T00:00:00Z", sj.Status.StartTime)
	assert.Equal(t, "2026-01-01T00:01:30Z", sj.Status.Timestamp)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://localhost:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, QueueJSON{Depth: 4, Capacity: 10, Spaces: 6, HighWater: 4, Drops: 3}, sj.Status.Queue)
	require.Len(t, sj.Status.Sources, 1)
	assert.Equal(t, "boot", sj.Status.Sources[0].Name)
	assert.Equal(t, int64(-1), sj.Status.Config.TimeoutMs)
}

func TestFormatStatusEvent(t *testing.T) {
	tr := newTestTracker()

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &sj))
	assert.Equal(t, "SHUTDOWN", sj.Status.Event)
	assert.Equal(t, "SIGTERM", sj.Status.Reason)
	assert.NotNil(t, sj.Status.Sources)
}
