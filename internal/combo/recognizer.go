package combo

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/droid-core/internal/button"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

// Range is an inclusive span of combo ids.
type Range struct {
	Min logic.ComboID `yaml:"min"`
	Max logic.ComboID `yaml:"max"`
}

// Contains reports whether id lies within the range.
func (r Range) Contains(id logic.ComboID) bool {
	return id >= r.Min && id <= r.Max
}

// Config configures the recognizer.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`

	ToggleHigh int `yaml:"toggle_high"`
	ToggleLow  int `yaml:"toggle_low"`

	MomentaryFire  int           `yaml:"momentary_fire"`
	MomentaryReset time.Duration `yaml:"momentary_reset"` // 0 re-arms on release only

	// Timeout is how long an action combo stays active without a retrigger.
	Timeout time.Duration `yaml:"timeout"`

	// Whitelist is the action range each mode accepts. A mode without an
	// entry rejects every action combo.
	Whitelist map[logic.Mode]Range `yaml:"whitelist"`

	Actions Actions `yaml:"actions"`
}

// DefaultConfig returns the stock thresholds, whitelist and action table.
func DefaultConfig() Config {
	return Config{
		Thresholds:     DefaultThresholds(),
		ToggleHigh:     1700,
		ToggleLow:      1300,
		MomentaryFire:  1900,
		MomentaryReset: 50 * time.Millisecond,
		Timeout:        time.Second,
		Whitelist: map[logic.Mode]Range{
			logic.ModeManual:    {Min: 5, Max: 8},
			logic.ModeAutomated: {Min: 5, Max: logic.ComboMax},
			logic.ModeHybrid:    {Min: 5, Max: 16},
			logic.ModeCarpet:    {Min: 5, Max: 8},
		},
		Actions: DefaultActions(),
	}
}

// Validate checks the thresholds, whitelist and action table.
func (c Config) Validate() error {
	th := c.Thresholds
	if th.DownMin > th.DownMax {
		return fmt.Errorf("combo thresholds: down_min %d > down_max %d", th.DownMin, th.DownMax)
	}
	if th.UpMin > th.UpMax {
		return fmt.Errorf("combo thresholds: up_min %d > up_max %d", th.UpMin, th.UpMax)
	}
	if th.LeftMax >= th.RightMin {
		return fmt.Errorf("combo thresholds: left_max %d must be below right_min %d", th.LeftMax, th.RightMin)
	}
	if c.ToggleLow > c.ToggleHigh {
		return fmt.Errorf("combo: toggle_low %d > toggle_high %d", c.ToggleLow, c.ToggleHigh)
	}
	if c.MomentaryFire <= c.ToggleLow {
		return fmt.Errorf("combo: momentary_fire %d must be above toggle_low %d", c.MomentaryFire, c.ToggleLow)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("combo: timeout must be positive, got %v", c.Timeout)
	}
	if c.MomentaryReset < 0 {
		return fmt.Errorf("combo: momentary_reset must not be negative, got %v", c.MomentaryReset)
	}
	for mode, r := range c.Whitelist {
		if !mode.Valid() {
			return fmt.Errorf("combo whitelist: unknown mode %d", mode)
		}
		if !r.Min.IsAction() || !r.Max.IsAction() || r.Min > r.Max {
			return fmt.Errorf("combo whitelist: mode %d range %d..%d outside %d..%d",
				mode, r.Min, r.Max, logic.ComboModeSelectMax+1, logic.ComboMax)
		}
	}
	return c.Actions.Validate()
}

// buttonInput is one auxiliary button channel and the base id it contributes.
type buttonInput struct {
	ch        pwm.ChannelID
	base      logic.ComboID
	toggle    *button.Toggle
	momentary *button.Momentary
}

// Recognizer turns stick directions and button edges into combos. It owns the
// active combo and writes mode and combo into the shared context.
type Recognizer struct {
	cfg    Config
	inputs []buttonInput

	active   logic.ComboID
	activeAt time.Time
	stick    Direction
}

// NewRecognizer creates a recognizer. Controller A's buttons give ids 1..16,
// controller B's give 17..32.
func NewRecognizer(cfg Config) *Recognizer {
	r := &Recognizer{cfg: cfg}
	toggle := func(ch pwm.ChannelID, base logic.ComboID) buttonInput {
		return buttonInput{ch: ch, base: base, toggle: button.NewToggle(cfg.ToggleHigh, cfg.ToggleLow)}
	}
	momentary := func(ch pwm.ChannelID, base logic.ComboID) buttonInput {
		return buttonInput{ch: ch, base: base,
			momentary: button.NewMomentary(cfg.MomentaryFire, cfg.ToggleLow, cfg.MomentaryReset)}
	}
	r.inputs = []buttonInput{
		toggle(pwm.A3, 1),
		toggle(pwm.A4, 2),
		toggle(pwm.A5, 3),
		momentary(pwm.A6, 4),
		toggle(pwm.B3, 17),
		toggle(pwm.B4, 18),
		toggle(pwm.B5, 19),
		momentary(pwm.B6, 20),
	}
	return r
}

// Update processes one frame. It may change ctx.Mode, always leaves ctx.Combo
// equal to the active combo, and returns the resulting events.
func (r *Recognizer) Update(f pwm.Frame, ctx *logic.Context, now time.Time) []logic.Event {
	r.stick = r.cfg.Thresholds.Combined(f).Primary()

	// Every detector sees every frame; the last edge in scan order wins.
	detected := logic.ComboIdle
	for _, in := range r.inputs {
		w, ok := f.Reading(in.ch)
		if in.toggle != nil {
			if in.toggle.Update(w, ok) && r.stick != Center {
				detected = in.base + logic.ComboID(r.stick.Offset())
			}
			continue
		}
		slot := -1
		if r.stick != Center {
			slot = int(r.stick)
		}
		if in.momentary.Update(now, w, ok, slot) {
			detected = in.base + logic.ComboID(r.stick.Offset())
		}
	}

	var events []logic.Event
	switch {
	case detected == logic.ComboIdle:
	case detected.IsModeSelect():
		r.active = logic.ComboIdle
		mode := logic.Mode(detected)
		if mode != ctx.Mode {
			log.Printf("combo: mode %s -> %s", ctx.Mode, mode)
			events = append(events, logic.Event{
				Timestamp: now,
				Type:      logic.EventModeChanged,
				Mode:      mode,
				PrevMode:  ctx.Mode,
				Combo:     detected,
			})
			ctx.Mode = mode
		}
	case detected == r.active:
		r.activeAt = now
	case r.allowed(ctx.Mode, detected):
		log.Printf("combo: active %d (mode %s)", detected, ctx.Mode)
		r.active = detected
		r.activeAt = now
		events = append(events, logic.Event{
			Timestamp: now,
			Type:      logic.EventComboActive,
			Mode:      ctx.Mode,
			Combo:     detected,
		})
	default:
		log.Printf("combo: rejected %d in mode %s", detected, ctx.Mode)
		r.active = logic.ComboIdle
		events = append(events, logic.Event{
			Timestamp: now,
			Type:      logic.EventComboRejected,
			Mode:      ctx.Mode,
			Combo:     detected,
		})
	}

	if r.active != logic.ComboIdle && now.Sub(r.activeAt) > r.cfg.Timeout {
		log.Printf("combo: expired %d", r.active)
		events = append(events, logic.Event{
			Timestamp: now,
			Type:      logic.EventComboExpired,
			Mode:      ctx.Mode,
			Combo:     r.active,
		})
		r.active = logic.ComboIdle
	}

	ctx.Combo = r.active
	return events
}

func (r *Recognizer) allowed(mode logic.Mode, id logic.ComboID) bool {
	rng, ok := r.cfg.Whitelist[mode]
	return ok && rng.Contains(id)
}

// Active returns the active combo, or ComboIdle.
func (r *Recognizer) Active() logic.ComboID {
	return r.active
}

// Stick returns the combined stick direction seen in the last frame.
func (r *Recognizer) Stick() Direction {
	return r.stick
}
