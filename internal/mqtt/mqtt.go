// Package mqtt publishes control events and system lifecycle events to MQTT,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// Topic is the MQTT topic for control events.
const Topic = "droid/core/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "droid/core/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a control event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Config configures the telemetry connection.
type Config struct {
	Broker     string        `yaml:"broker"` // empty disables telemetry
	ClientID   string        `yaml:"client_id"`
	BufferSize int           `yaml:"buffer_size"`
	Heartbeat  time.Duration `yaml:"heartbeat"` // 0 disables
}

// DefaultConfig returns telemetry disabled with a 15 minute heartbeat.
func DefaultConfig() Config {
	return Config{
		ClientID:   "droid-core",
		BufferSize: 256,
		Heartbeat:  15 * time.Minute,
	}
}

// Validate checks the buffer size and heartbeat.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("telemetry: buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("telemetry: heartbeat must not be negative")
	}
	return nil
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Droid DroidPayload `json:"droid"`
}

// DroidPayload contains the event details. Fields that do not apply to the
// event type are omitted.
type DroidPayload struct {
	Timestamp string    `json:"timestamp"`
	Event     string    `json:"event"`
	Mode      string    `json:"mode"`
	PrevMode  string    `json:"prev_mode,omitempty"`
	Combo     int       `json:"combo,omitempty"`
	Label     string    `json:"label,omitempty"`
	Track     int       `json:"track,omitempty"`
	Dome      *DomeJSON `json:"dome,omitempty"`
}

// DomeJSON describes one automation dome move.
type DomeJSON struct {
	Direction  string  `json:"direction"`
	Speed      int     `json:"speed"`
	Angle      float64 `json:"angle"`
	Actual     float64 `json:"actual"`
	Offset     float64 `json:"offset"`
	DurationMs int64   `json:"duration_ms"`
	Correction bool    `json:"correction"`
}

// FormatPayload creates the JSON payload for a control event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := DroidPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:     string(event.Type),
		Mode:      event.Mode.String(),
		Combo:     int(event.Combo),
		Label:     event.Label,
		Track:     event.Track,
	}
	if event.Type == logic.EventModeChanged {
		p.PrevMode = event.PrevMode.String()
	}
	if d := event.Dome; d != nil {
		dir := "right"
		if d.Direction < 0 {
			dir = "left"
		}
		p.Dome = &DomeJSON{
			Direction:  dir,
			Speed:      d.Speed,
			Angle:      d.Angle,
			Actual:     d.Actual,
			Offset:     d.Offset,
			DurationMs: d.Duration.Milliseconds(),
			Correction: d.Correction,
		}
	}
	return json.Marshal(Payload{Droid: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
