// Package mqtt publishes telemetry samples and lifecycle events with an
// abstraction for testing. The real client never blocks the run loop on
// broker availability: messages published while disconnected are held in
// a ring buffer and replayed on (re)connect.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topics. Status carries a retained online/offline marker, paired with
// the connection will, so controllers see liveness without polling.
const (
	TopicTelemetry = "xglow/telemetry"
	TopicEvent     = "xglow/event"
	TopicStatus    = "xglow/status"
)

// Lifecycle event names.
const (
	EventStartup       = "STARTUP"
	EventShutdown      = "SHUTDOWN"
	EventBusRecovery   = "BUS_RECOVERY"
	EventPresenceOn    = "PRESENCE_ON"
	EventPresenceOff   = "PRESENCE_OFF"
	EventConfigApplied = "CONFIG_APPLIED"
)

// Sample is one successful telemetry reading.
type Sample struct {
	Timestamp time.Time
	Channel   string  // "cpu" or "fan"
	Raw       uint8   // register byte as read
	Value     float64 // converted and smoothed
	Step      int     // round-robin slot that produced it
}

// Event is a lifecycle event (startup, shutdown, bus recovery, presence
// transition, config change).
type Event struct {
	Timestamp time.Time
	Name      string
	Reason    string

	// RawPayload, when set, is published verbatim instead of the
	// standard event shape. Used for full status snapshots.
	RawPayload []byte
}

// Publisher publishes telemetry and events to the broker.
type Publisher interface {
	// PublishSample sends one telemetry reading, QoS 0.
	// Returns error if publishing fails (must not crash the process).
	PublishSample(s Sample) error

	// PublishEvent sends one lifecycle event, QoS 1.
	PublishEvent(e Event) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// SamplePayload is the telemetry message shape.
type SamplePayload struct {
	Telemetry SampleBody `json:"telemetry"`
}

// SampleBody carries the reading itself.
type SampleBody struct {
	Timestamp string  `json:"timestamp"`
	Channel   string  `json:"channel"`
	Raw       uint8   `json:"raw"`
	Value     float64 `json:"value"`
	Step      int     `json:"step"`
}

// FormatSample creates the JSON payload for a telemetry sample.
func FormatSample(s Sample) ([]byte, error) {
	payload := SamplePayload{
		Telemetry: SampleBody{
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
			Channel:   s.Channel,
			Raw:       s.Raw,
			Value:     s.Value,
			Step:      s.Step,
		},
	}
	return json.Marshal(payload)
}

// EventPayload is the lifecycle message shape.
type EventPayload struct {
	Event EventBody `json:"event"`
}

// EventBody carries the event details.
type EventBody struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Reason    string `json:"reason,omitempty"`
}

// FormatEvent creates the JSON payload for a lifecycle event. A set
// RawPayload is returned directly.
func FormatEvent(e Event) ([]byte, error) {
	if e.RawPayload != nil {
		return e.RawPayload, nil
	}

	payload := EventPayload{
		Event: EventBody{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Name:      e.Name,
			Reason:    e.Reason,
		},
	}
	return json.Marshal(payload)
}
