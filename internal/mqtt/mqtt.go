// Package mqtt publishes accepted button presses and daemon lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "home/buttons"

// Topics derives the press and system topics from a prefix.
func Topics(prefix string) (events, system string) {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/events", prefix + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button press. Errors are reported, never fatal.
	Publish(press Press) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and how
// many messages are waiting for it.
type ConnectionStatus interface {
	IsConnected() bool
	Buffered() int
}

// Press is one accepted button press.
type Press struct {
	Time   time.Time // wall clock at dispatch
	Source uint8
	Name   string
	Count  uint64 // presses of this source since startup, including this one
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the JSON body of a press message.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the press details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    uint8  `json:"source"`
	Name      string `json:"name,omitempty"`
	Count     uint64 `json:"count"`
}

// FormatPayload creates the JSON payload for a press.
func FormatPayload(press Press) ([]byte, error) {
	return json.Marshal(Payload{
		Button: ButtonPayload{
			Timestamp: press.Time.UTC().Format(time.RFC3339Nano),
			Event:     "PRESSED",
			Source:    press.Source,
			Name:      press.Name,
			Count:     press.Count,
		},
	})
}

// SystemPayload is used for simple events (LWT) that don't carry a status
// snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
