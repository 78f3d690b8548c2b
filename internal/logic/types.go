// Package logic contains the control-state types shared by every stage of the tick.
// This package has NO external dependencies (no GPIO, serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Mode is the top-level operating mode selected by the mode-select combos.
type Mode int

const (
	ModeManual    Mode = 1
	ModeAutomated Mode = 2
	ModeHybrid    Mode = 3
	ModeCarpet    Mode = 4
)

// Modes lists every valid mode in id order.
var Modes = []Mode{ModeManual, ModeAutomated, ModeHybrid, ModeCarpet}

// Valid reports whether m is one of the four defined modes.
func (m Mode) Valid() bool {
	return m >= ModeManual && m <= ModeCarpet
}

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeAutomated:
		return "AUTOMATED"
	case ModeHybrid:
		return "HYBRID"
	case ModeCarpet:
		return "CARPET"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}

// ComboID identifies a recognized joystick+button combination. Zero means idle.
type ComboID int

const (
	ComboIdle ComboID = 0

	// Ids 1..4 select a mode; 5..32 are action combos.
	ComboModeSelectMax ComboID = 4
	ComboMax           ComboID = 32
)

// IsModeSelect reports whether the combo selects a mode.
func (c ComboID) IsModeSelect() bool {
	return c >= 1 && c <= ComboModeSelectMax
}

// IsAction reports whether the combo is an action combo.
func (c ComboID) IsAction() bool {
	return c > ComboModeSelectMax && c <= ComboMax
}

// Context is the control state shared by the recognizer, scheduler, arbiter and
// soundboard. It is owned by the control loop and passed explicitly to each stage.
type Context struct {
	Mode       Mode
	Combo      ComboID
	Suppressed bool // audio triggers are skipped while set
}

// NewContext returns a context in the given mode with no active combo.
func NewContext(mode Mode) *Context {
	return &Context{Mode: mode}
}

// EventType names a telemetry event.
type EventType string

const (
	EventModeChanged     EventType = "MODE_CHANGED"
	EventComboActive     EventType = "COMBO_ACTIVE"
	EventComboRejected   EventType = "COMBO_REJECTED"
	EventComboExpired    EventType = "COMBO_EXPIRED"
	EventAction          EventType = "ACTION"
	EventKillAsserted    EventType = "KILL_ASSERTED"
	EventKillReleased    EventType = "KILL_RELEASED"
	EventDomeMove        EventType = "DOME_MOVE"
	EventDomeComplete    EventType = "DOME_COMPLETE"
	EventAudioTrigger    EventType = "AUDIO_TRIGGER"
	EventAudioSuppressed EventType = "AUDIO_SUPPRESSED"
)

// DomeMove describes one committed automation move.
type DomeMove struct {
	Direction  int // -1 left, +1 right
	Speed      int
	Angle      float64 // requested degrees
	Actual     float64 // degrees implied by the rounded duration
	Offset     float64 // accumulated offset after this move
	Duration   time.Duration
	Correction bool
}

// Event is a state transition reported to the telemetry stream.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	PrevMode  Mode    // MODE_CHANGED only
	Combo     ComboID // combo events and ACTION
	Label     string  // action label or sound bank
	Track     int     // AUDIO_TRIGGER only
	Dome      *DomeMove
}

// EventCounts tracks the number of notable events since startup.
type EventCounts struct {
	ModeChanges   int
	Combos        int
	Rejected      int
	KillEdges     int
	DomeMoves     int
	AudioTriggers int
}

// Count adds the events to the running totals.
func (c *EventCounts) Count(events []Event) {
	for _, e := range events {
		switch e.Type {
		case EventModeChanged:
			c.ModeChanges++
		case EventComboActive:
			c.Combos++
		case EventComboRejected:
			c.Rejected++
		case EventKillAsserted, EventKillReleased:
			c.KillEdges++
		case EventDomeMove:
			c.DomeMoves++
		case EventAudioTrigger:
			c.AudioTriggers++
		}
	}
}
