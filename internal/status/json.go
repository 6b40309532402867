package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	InstanceID    string       `json:"instance_id"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Queue         QueueJSON    `json:"queue"`
	Counts        CountsJSON   `json:"event_counts"`
	Sources       []SourceJSON `json:"sources"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// QueueJSON is the JSON representation of queue stats.
type QueueJSON struct {
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	Spaces    int    `json:"spaces"`
	HighWater int    `json:"high_water"`
	Drops     uint64 `json:"drops"`
}

// CountsJSON is the JSON representation of dispatcher counters.
type CountsJSON struct {
	Received   uint64 `json:"received"`
	Dispatched uint64 `json:"dispatched"`
	Debounced  uint64 `json:"debounced"`
	Unknown    uint64 `json:"unknown"`
	Timeouts   uint64 `json:"timeouts"`
	Failed     uint64 `json:"failed"`
}

// SourceJSON is the JSON representation of one source.
type SourceJSON struct {
	ID         uint8  `json:"id"`
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	Action     string `json:"action"`
	Dispatched uint64 `json:"dispatched"`
	Debounced  uint64 `json:"debounced"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	QueueCapacity int    `json:"queue_capacity"`
	DebounceMs    int64  `json:"debounce_ms"`
	TimeoutMs     int64  `json:"timeout_ms"`
	PollMs        int64  `json:"poll_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	sources := make([]SourceJSON, 0, len(snap.Sources))
	for _, s := range snap.Sources {
		sources = append(sources, SourceJSON{
			ID:         s.ID,
			Name:       s.Name,
			Pin:        s.Pin,
			Action:     s.Action,
			Dispatched: s.Dispatched,
			Debounced:  s.Debounced,
		})
	}

	return StatusInner{
		InstanceID:    snap.InstanceID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Buffered: snap.MQTTBuffered},
		Queue: QueueJSON{
			Depth:     snap.Queue.Depth,
			Capacity:  snap.Queue.Capacity,
			Spaces:    snap.Queue.Capacity - snap.Queue.Depth,
			HighWater: snap.Queue.HighWater,
			Drops:     snap.Queue.Drops,
		},
		Counts: CountsJSON{
			Received:   snap.Dispatch.Received,
			Dispatched: snap.Dispatch.Dispatched,
			Debounced:  snap.Dispatch.Debounced,
			Unknown:    snap.Dispatch.Unknown,
			Timeouts:   snap.Dispatch.Timeouts,
			Failed:     snap.Dispatch.Failed,
		},
		Sources: sources,
		Config: ConfigJSON{
			QueueCapacity: snap.Config.QueueCapacity,
			DebounceMs:    snap.Config.DebounceMs,
			TimeoutMs:     snap.Config.TimeoutMs,
			PollMs:        snap.Config.PollMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
