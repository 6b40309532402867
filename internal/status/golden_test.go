package status

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

func goldenSnapshot() Snapshot {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		InstanceID: "7c1e4a52-1111-4e2b-9a55-2f7b0c3d9e10",
		StartTime:  start,
		Now:        start.Add(time.Hour + time.Minute + 5*time.Second),
		Queue:      QueueStats{Depth: 1, Capacity: 10, Drops: 2, HighWater: 4},
		Dispatch: DispatchStats{
			Received:   12,
			Dispatched: 7,
			Debounced:  4,
			Unknown:    1,
		},
		Sources: []Source{
			{ID: 1, Name: "boot", Pin: 17, Action: "toggle,publish", Dispatched: 5, Debounced: 3},
			{ID: 2, Name: "aux", Pin: 27, Action: "log", Dispatched: 2, Debounced: 1},
		},
		MQTTConnected: true,
		MQTTBuffered:  3,
		Config: Config{
			QueueCapacity: 10,
			DebounceMs:    30,
			TimeoutMs:     -1,
			PollMs:        1000,
			HeartbeatMs:   900000,
			Broker:        "tcp://broker:1883",
			HTTPAddr:      ":80",
		},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestFormatJSONGolden(t *testing.T) {
	newGoldie(t).Assert(t, "status_json", FormatJSON(goldenSnapshot()))
}

func TestFormatStatusEventGolden(t *testing.T) {
	snap := goldenSnapshot()
	snap.Sources = snap.Sources[:1]
	newGoldie(t).Assert(t, "shutdown_event", FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"))
}
