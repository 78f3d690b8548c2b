// Package pwm measures radio-control pulse widths from GPIO edge events.
// The real edge source uses the Linux GPIO character device.
// The fake edge source allows testing without hardware.
package pwm

import (
	"fmt"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// ChannelID identifies one receiver output. CH1 is the stick left/right axis,
// CH2 the stick up/down axis, CH3..CH5 toggle buttons and CH6 the momentary button.
type ChannelID int

const (
	A1 ChannelID = iota // controller A turn
	A2                  // controller A drive
	A3
	A4
	A5
	A6
	B1 // controller B turn (dome in manual modes)
	B2 // controller B drive
	B3
	B4
	B5
	B6

	NumChannels
)

var channelNames = [NumChannels]string{
	"A1", "A2", "A3", "A4", "A5", "A6",
	"B1", "B2", "B3", "B4", "B5", "B6",
}

func (c ChannelID) String() string {
	if c < 0 || c >= NumChannels {
		return fmt.Sprintf("CH(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel converts a channel name such as "B1" into its ID.
func ParseChannel(name string) (ChannelID, error) {
	for i, n := range channelNames {
		if n == name {
			return ChannelID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Neutral is the centre pulse width reported for stale or missing channels.
const Neutral = 1500

// Band is an inclusive pulse-width range in microseconds.
type Band struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether w lies within the band.
func (b Band) Contains(w int) bool {
	return w >= b.Min && w <= b.Max
}

// ChannelConfig places a channel on a GPIO line.
type ChannelConfig struct {
	Pin int `yaml:"pin"`
	// Modes lists the modes the line is attached in; empty means every mode.
	Modes []logic.Mode `yaml:"modes,omitempty"`
}

// Config configures the decoder.
type Config struct {
	Chip       string                   `yaml:"chip"`
	Valid      Band                     `yaml:"valid"`
	StaleAfter time.Duration            `yaml:"stale_after"` // 0 disables staleness
	Channels   map[string]ChannelConfig `yaml:"channels"`
}

// DefaultConfig returns the standard wiring (BCM numbering) and validity band.
// B1 shares its line with the dome position encoder outside the manual modes.
func DefaultConfig() Config {
	return Config{
		Chip:       "gpiochip0",
		Valid:      Band{Min: 900, Max: 2200},
		StaleAfter: 500 * time.Millisecond,
		Channels: map[string]ChannelConfig{
			"A1": {Pin: 5},
			"A2": {Pin: 6},
			"A3": {Pin: 13},
			"A4": {Pin: 19},
			"A5": {Pin: 26},
			"A6": {Pin: 12},
			"B1": {Pin: 16, Modes: []logic.Mode{logic.ModeManual, logic.ModeCarpet}},
			"B2": {Pin: 20},
			"B3": {Pin: 21},
			"B4": {Pin: 22},
			"B5": {Pin: 23},
			"B6": {Pin: 24},
		},
	}
}

// EdgeHandler receives one edge. It runs on the edge source's event goroutine
// and must not block or allocate.
type EdgeHandler func(ch ChannelID, rising bool, ts time.Duration)

// EdgeSource delivers timestamped edges for attached channels.
type EdgeSource interface {
	// Attach starts delivering edges on pin for ch.
	Attach(ch ChannelID, pin int, h EdgeHandler) error

	// Detach stops delivering edges for ch and releases its line.
	Detach(ch ChannelID) error

	// Now returns the current time on the clock edge timestamps use.
	Now() time.Duration

	// Close releases all lines.
	Close() error
}

// Frame is the per-tick copy of every channel. All consumers in one tick read
// the same Frame, so no consumer sees two different values of a channel.
type Frame struct {
	widths [NumChannels]int
	fresh  [NumChannels]bool
	newer  [NumChannels]bool // a pulse arrived since the previous snapshot
}

// Reading returns the channel's width and whether it is fresh.
func (f Frame) Reading(ch ChannelID) (int, bool) {
	if ch < 0 || ch >= NumChannels || !f.fresh[ch] {
		return 0, false
	}
	return f.widths[ch], true
}

// Value returns the channel's width, or Neutral if it is stale or missing.
func (f Frame) Value(ch ChannelID) int {
	if w, ok := f.Reading(ch); ok {
		return w
	}
	return Neutral
}

// New reports whether ch received a pulse since the previous snapshot. A
// reading can be fresh without being new while the radio is silent for less
// than the staleness window.
func (f Frame) New(ch ChannelID) bool {
	return ch >= 0 && ch < NumChannels && f.newer[ch]
}

// With returns a copy of the frame with ch set to a new, fresh width.
func (f Frame) With(ch ChannelID, width int) Frame {
	f.widths[ch] = width
	f.fresh[ch] = true
	f.newer[ch] = true
	return f
}

// Held returns a copy of the frame with ch holding width from an earlier
// pulse: fresh, but not new.
func (f Frame) Held(ch ChannelID, width int) Frame {
	f = f.With(ch, width)
	f.newer[ch] = false
	return f
}

// FrameOf builds a frame whose listed channels are fresh. Others are stale.
func FrameOf(widths map[ChannelID]int) Frame {
	var f Frame
	for ch, w := range widths {
		f = f.With(ch, w)
	}
	return f
}
