package audio

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/droid-core/internal/button"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

// Rand is the random source for track selection. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Bank maps one button channel to an inclusive range of tracks.
type Bank struct {
	Channel   string `yaml:"channel"`
	Label     string `yaml:"label"`
	Start     int    `yaml:"start"`
	End       int    `yaml:"end"`
	Momentary bool   `yaml:"momentary"`
}

// SoundboardConfig configures the button soundboard.
type SoundboardConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ToggleHigh     int           `yaml:"toggle_high"`
	ToggleLow      int           `yaml:"toggle_low"`
	MomentaryFire  int           `yaml:"momentary_fire"`
	MomentaryReset time.Duration `yaml:"momentary_reset"` // 0 re-arms on release only
	Banks          []Bank        `yaml:"banks"`
}

// DefaultSoundboardConfig returns the stock bank layout.
func DefaultSoundboardConfig() SoundboardConfig {
	return SoundboardConfig{
		Enabled:       true,
		ToggleHigh:    1700,
		ToggleLow:     1300,
		MomentaryFire: 1700,
		Banks: []Bank{
			{Channel: "A3", Label: "Happy", Start: 1, End: 16},
			{Channel: "A4", Label: "Sad", Start: 31, End: 35},
			{Channel: "A5", Label: "Talking", Start: 61, End: 76},
			{Channel: "A6", Label: "Yelling", Start: 91, End: 103, Momentary: true},
			{Channel: "B3", Label: "Classic", Start: 121, End: 123},
			{Channel: "B4", Label: "Dance", Start: 151, End: 156},
			{Channel: "B5", Label: "Singing", Start: 181, End: 186},
			{Channel: "B6", Label: "Lines", Start: 211, End: 212, Momentary: true},
		},
	}
}

// Validate checks thresholds, channels and track ranges.
func (c SoundboardConfig) Validate() error {
	if c.ToggleLow > c.ToggleHigh {
		return fmt.Errorf("soundboard: toggle_low %d > toggle_high %d", c.ToggleLow, c.ToggleHigh)
	}
	if c.MomentaryFire <= c.ToggleLow {
		return fmt.Errorf("soundboard: momentary_fire %d must be above toggle_low %d", c.MomentaryFire, c.ToggleLow)
	}
	if c.MomentaryReset < 0 {
		return fmt.Errorf("soundboard: momentary_reset must not be negative")
	}
	seen := make(map[pwm.ChannelID]bool)
	for _, b := range c.Banks {
		ch, err := pwm.ParseChannel(b.Channel)
		if err != nil {
			return fmt.Errorf("soundboard bank %q: %w", b.Label, err)
		}
		if seen[ch] {
			return fmt.Errorf("soundboard: channel %s used twice", ch)
		}
		seen[ch] = true
		if checkTrack(b.Start) != nil || checkTrack(b.End) != nil || b.Start > b.End {
			return fmt.Errorf("soundboard bank %q: tracks %d..%d invalid", b.Label, b.Start, b.End)
		}
	}
	return nil
}

type bankInput struct {
	bank      Bank
	ch        pwm.ChannelID
	toggle    *button.Toggle
	momentary *button.Momentary
}

// Soundboard plays a random track from a bank when its button changes.
type Soundboard struct {
	enabled bool
	inputs  []bankInput
	rng     Rand
	blocked bool
}

// NewSoundboard builds the soundboard. cfg must have been validated.
func NewSoundboard(cfg SoundboardConfig, rng Rand) *Soundboard {
	s := &Soundboard{enabled: cfg.Enabled, rng: rng}
	for _, b := range cfg.Banks {
		ch, _ := pwm.ParseChannel(b.Channel)
		in := bankInput{bank: b, ch: ch}
		if b.Momentary {
			in.momentary = button.NewMomentary(cfg.MomentaryFire, cfg.ToggleLow, cfg.MomentaryReset)
		} else {
			in.toggle = button.NewToggle(cfg.ToggleHigh, cfg.ToggleLow)
		}
		s.inputs = append(s.inputs, in)
	}
	return s
}

// Update processes one frame and returns an AUDIO_TRIGGER event per fired
// bank. While audio is suppressed, or hold is set (the kill switch), nothing
// fires and every detector is reset.
func (s *Soundboard) Update(f pwm.Frame, ctx *logic.Context, hold bool, now time.Time) []logic.Event {
	if !s.enabled {
		return nil
	}
	if ctx.Suppressed || hold {
		if !s.blocked {
			s.reset()
			s.blocked = true
		}
		return nil
	}
	s.blocked = false

	var events []logic.Event
	for _, in := range s.inputs {
		w, ok := f.Reading(in.ch)
		var fired bool
		if in.toggle != nil {
			fired = in.toggle.Update(w, ok)
		} else {
			fired = in.momentary.Update(now, w, ok, 0)
		}
		if !fired {
			continue
		}
		track := in.bank.Start + s.rng.Intn(in.bank.End-in.bank.Start+1)
		log.Printf("soundboard: %s track %d", in.bank.Label, track)
		events = append(events, logic.Event{
			Timestamp: now,
			Type:      logic.EventAudioTrigger,
			Mode:      ctx.Mode,
			Label:     in.bank.Label,
			Track:     track,
		})
	}
	return events
}

func (s *Soundboard) reset() {
	for _, in := range s.inputs {
		if in.toggle != nil {
			in.toggle.Reset()
		} else {
			in.momentary.Reset()
		}
	}
}
