// Package mqtt mirrors line events and daemon lifecycle events to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "gpio-monitor"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a line event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event LineEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// LineEvent is one monitor callback on one line.
type LineEvent struct {
	Timestamp time.Time
	Line      string
	Event     string // e.g. "Asserted", "PulseStart"
	Asserted  bool
	Init      bool // true for the initial state report at startup
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)

	// RawPayload, if set, is published as-is (full status snapshots).
	RawPayload []byte
	Retained   bool
}

// EventTopic returns the topic a line's events are published on.
func EventTopic(prefix, line string) string {
	return prefix + "/lines/" + topicSafe(line) + "/events"
}

// SystemTopic returns the topic lifecycle events are published on.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// topicSafe replaces characters that have a meaning in MQTT topics.
func topicSafe(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(s)
}

// Payload represents the MQTT message payload for a line event.
type Payload struct {
	Line LinePayload `json:"line"`
}

// LinePayload contains the line event details.
type LinePayload struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Event     string `json:"event"`
	Asserted  bool   `json:"asserted"`
	Init      bool   `json:"init,omitempty"`
}

// FormatPayload creates the JSON payload for a line event.
func FormatPayload(event LineEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Line: LinePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Name:      event.Line,
			Event:     event.Event,
			Asserted:  event.Asserted,
			Init:      event.Init,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
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
