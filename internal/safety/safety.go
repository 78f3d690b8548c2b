// Package safety decides what actually reaches the motors each tick. It
// applies the per-mode kill switch and per-axis command timeouts.
package safety

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/droid-core/internal/automation"
	"github.com/sweeney/droid-core/internal/combo"
	"github.com/sweeney/droid-core/internal/drive"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

// KillTerm is held when the controller's stick is in any of Directions.
type KillTerm struct {
	Controller combo.Controller  `yaml:"controller"`
	Directions []combo.Direction `yaml:"directions"`
}

// Config configures the arbiter.
type Config struct {
	// Kill lists, per mode, the terms of which any one holds the kill switch.
	Kill map[logic.Mode][]KillTerm `yaml:"kill"`

	// Timeouts is the per-axis command timeout for each mode.
	Timeouts map[logic.Mode]time.Duration `yaml:"timeouts"`
}

var (
	allDirections = []combo.Direction{combo.Down, combo.Up, combo.Left, combo.Right}
	upDown        = []combo.Direction{combo.Down, combo.Up}
)

// DefaultConfig returns the stock kill mapping and timeouts. B left/right is
// left out of the automated modes, where B1's line belongs to the dome encoder.
func DefaultConfig() Config {
	return Config{
		Kill: map[logic.Mode][]KillTerm{
			logic.ModeManual: {
				{Controller: combo.ControllerB, Directions: upDown},
			},
			logic.ModeAutomated: {
				{Controller: combo.ControllerA, Directions: allDirections},
				{Controller: combo.ControllerB, Directions: upDown},
			},
			logic.ModeHybrid: {
				{Controller: combo.ControllerB, Directions: upDown},
			},
			logic.ModeCarpet: {
				{Controller: combo.ControllerB, Directions: []combo.Direction{combo.Down, combo.Left, combo.Right}},
			},
		},
		Timeouts: map[logic.Mode]time.Duration{
			logic.ModeManual:    50 * time.Millisecond,
			logic.ModeAutomated: 50 * time.Millisecond,
			logic.ModeHybrid:    150 * time.Millisecond,
			logic.ModeCarpet:    50 * time.Millisecond,
		},
	}
}

// Validate checks mode keys, directions and timeouts.
func (c Config) Validate() error {
	for mode, terms := range c.Kill {
		if !mode.Valid() {
			return fmt.Errorf("safety kill: unknown mode %d", mode)
		}
		for _, term := range terms {
			if len(term.Directions) == 0 {
				return fmt.Errorf("safety kill mode %d: term for controller %s has no directions", mode, term.Controller)
			}
			for _, d := range term.Directions {
				if d == combo.Center {
					return fmt.Errorf("safety kill mode %d: centre cannot hold the kill switch", mode)
				}
			}
		}
	}
	for mode, d := range c.Timeouts {
		if !mode.Valid() {
			return fmt.Errorf("safety timeouts: unknown mode %d", mode)
		}
		if d <= 0 {
			return fmt.Errorf("safety timeouts: mode %d timeout must be positive, got %v", mode, d)
		}
	}
	return nil
}

// Axis holds the last fresh command of one axis until it times out.
type Axis struct {
	Timeout time.Duration

	value int
	at    time.Time
}

// Update returns the command to send: v when fresh, otherwise the last fresh
// value until Timeout has elapsed since it was computed, then 0.
func (a *Axis) Update(v int, fresh bool, now time.Time) int {
	if fresh {
		a.value = v
		a.at = now
		return v
	}
	if a.at.IsZero() || now.Sub(a.at) > a.Timeout {
		a.value = 0
	}
	return a.value
}

// Reset forgets the held value.
func (a *Axis) Reset() {
	a.value = 0
	a.at = time.Time{}
}

// Decision is the arbitrated drive output for one tick.
type Decision struct {
	Drive  int
	Turn   int
	Kill   bool
	Events []logic.Event
}

// Arbiter evaluates the kill switch and command timeouts.
type Arbiter struct {
	cfg Config
	th  combo.Thresholds

	mode  logic.Mode
	drive Axis
	turn  Axis
	kill  bool
}

// NewArbiter creates an arbiter that classifies sticks with th.
func NewArbiter(cfg Config, th combo.Thresholds) *Arbiter {
	return &Arbiter{cfg: cfg, th: th}
}

// Channel returns the receiver channel that reports d for the term's
// controller.
func (t KillTerm) Channel(d combo.Direction) pwm.ChannelID {
	turn, drive := t.Controller.Stick()
	if d == combo.Left || d == combo.Right {
		return turn
	}
	return drive
}

// KillHeld reports whether the kill condition of mode holds in f.
func (a *Arbiter) KillHeld(f pwm.Frame, mode logic.Mode) bool {
	for _, term := range a.cfg.Kill[mode] {
		held := a.th.Held(f, term.Controller)
		for _, d := range term.Directions {
			if held.Has(d) {
				return true
			}
		}
	}
	return false
}

// Evaluate arbitrates the mapped drive output. Kill edges are reported once
// per transition.
func (a *Arbiter) Evaluate(f pwm.Frame, mode logic.Mode, out drive.Output, now time.Time) Decision {
	if mode != a.mode {
		a.mode = mode
		a.drive.Reset()
		a.turn.Reset()
		a.drive.Timeout = a.cfg.Timeouts[mode]
		a.turn.Timeout = a.cfg.Timeouts[mode]
	}

	d := Decision{
		Drive: a.drive.Update(out.Drive, out.DriveFresh, now),
		Turn:  a.turn.Update(out.Turn, out.TurnFresh, now),
		Kill:  a.KillHeld(f, mode),
	}

	if d.Kill != a.kill {
		a.kill = d.Kill
		typ, verb := logic.EventKillReleased, "released"
		if d.Kill {
			typ, verb = logic.EventKillAsserted, "asserted"
		}
		log.Printf("safety: kill %s in mode %s", verb, mode)
		d.Events = append(d.Events, logic.Event{Timestamp: now, Type: typ, Mode: mode})
	}

	if d.Kill {
		d.Drive = 0
		d.Turn = 0
	}
	return d
}

// Dome returns the dome command. An automated mode's command passes through
// untouched so a committed move runs to completion; a manual dome command is
// zeroed while kill is held.
func (a *Arbiter) Dome(out drive.Output, auto automation.Result, kill bool) int {
	switch {
	case auto.Active:
		return auto.Dome
	case kill || !out.DomeManual:
		return 0
	default:
		return out.Dome
	}
}

// Killed reports the kill state from the last Evaluate.
func (a *Arbiter) Killed() bool {
	return a.kill
}
