// Package button detects edges on the receiver's auxiliary button channels.
// Toggle switches fire on any level change; momentary buttons fire once per
// press. Detectors are pure and take the caller's clock.
package button

import "time"

type level int

const (
	levelUnknown level = iota
	levelLow
	levelHigh
)

// Toggle detects level changes on a two-position switch channel.
// Widths between the thresholds hold the previous level.
type Toggle struct {
	high int
	low  int
	last level
}

// NewToggle creates a toggle that reads high above high and low below low.
func NewToggle(high, low int) *Toggle {
	return &Toggle{high: high, low: low}
}

// Update feeds one reading and reports whether the switch changed level.
// The first reading with a definite level only establishes the baseline.
// Stale readings (ok false) are ignored.
func (t *Toggle) Update(width int, ok bool) bool {
	if !ok {
		return false
	}
	var l level
	switch {
	case width > t.high:
		l = levelHigh
	case width < t.low:
		l = levelLow
	default:
		return false
	}
	if t.last == levelUnknown {
		t.last = l
		return false
	}
	if l == t.last {
		return false
	}
	t.last = l
	return true
}

// Reset forgets the baseline so the next reading re-establishes it.
func (t *Toggle) Reset() {
	t.last = levelUnknown
}

// MaxSlots is the number of independent latches a Momentary keeps.
const MaxSlots = 8

// Momentary detects presses of a spring-loaded button channel. Each slot has
// its own latch so a press can fire once per held joystick direction.
type Momentary struct {
	fire   int
	low    int
	window time.Duration // 0 disables the auto-reset

	latched [MaxSlots]bool
	firedAt [MaxSlots]time.Time
}

// NewMomentary creates a detector that fires at or above fire, re-arms below
// low, and also re-arms window after firing when window is non-zero.
func NewMomentary(fire, low int, window time.Duration) *Momentary {
	return &Momentary{fire: fire, low: low, window: window}
}

// Update feeds one reading at now and reports whether slot fired. A negative
// slot means no slot is eligible; latches are still re-armed.
func (m *Momentary) Update(now time.Time, width int, ok bool, slot int) bool {
	if m.window > 0 {
		for i := range m.latched {
			if m.latched[i] && now.Sub(m.firedAt[i]) > m.window {
				m.latched[i] = false
			}
		}
	}
	if !ok {
		return false
	}
	if width < m.low {
		m.Reset()
		return false
	}
	if slot < 0 || slot >= MaxSlots || width < m.fire || m.latched[slot] {
		return false
	}
	m.latched[slot] = true
	m.firedAt[slot] = now
	return true
}

// Reset re-arms every slot.
func (m *Momentary) Reset() {
	for i := range m.latched {
		m.latched[i] = false
	}
}
