// Package drive maps joystick pulse widths to drive, turn and dome commands.
// One Mapper serves every mode; the per-mode behaviour is a Profile.
package drive

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

// MaxPower is the largest drive or turn magnitude.
const MaxPower = 127

// DomeProfile shapes the manual dome stick.
type DomeProfile struct {
	Enabled               bool          `yaml:"enabled"`
	DeadZone              int           `yaml:"dead_zone"`
	SpeedLimit            int           `yaml:"speed_limit"`
	LeftGain              float64       `yaml:"left_gain"`
	RightGain             float64       `yaml:"right_gain"`
	FineControlMultiplier int           `yaml:"fine_control_multiplier"`
	FlickThreshold        int           `yaml:"flick_threshold"`
	FlickMinDuration      time.Duration `yaml:"flick_min_duration"`
	MaxFlickSpeed         int           `yaml:"max_flick_speed"`
}

// Profile is the tuning for one mode.
type Profile struct {
	Enabled    bool    `yaml:"enabled"` // false leaves drive and turn at zero
	Expo       float64 `yaml:"expo"`
	SpeedLimit int     `yaml:"speed_limit"`
	DeadZone   int     `yaml:"dead_zone"`

	// TaperTurn ramps turn down after the stick is released instead of
	// dropping straight to zero.
	TaperTurn     bool `yaml:"taper_turn"`
	TaperFallRate int  `yaml:"taper_fall_rate"`

	// While |drive| exceeds TurnClampAbove, turn is limited to ±TurnClamp.
	TurnClampAbove int `yaml:"turn_clamp_above"`
	TurnClamp      int `yaml:"turn_clamp"`

	Dome DomeProfile `yaml:"dome"`
}

func manualDome() DomeProfile {
	return DomeProfile{
		Enabled:               true,
		SpeedLimit:            100,
		LeftGain:              1,
		RightGain:             1,
		FineControlMultiplier: 2,
		FlickThreshold:        5,
		FlickMinDuration:      40 * time.Millisecond,
		MaxFlickSpeed:         20,
	}
}

// DefaultProfiles returns the stock tuning for each mode.
func DefaultProfiles() map[logic.Mode]Profile {
	return map[logic.Mode]Profile{
		logic.ModeManual: {
			Enabled:        true,
			Expo:           1,
			SpeedLimit:     25,
			TaperFallRate:  60,
			TurnClampAbove: 40,
			TurnClamp:      100,
			Dome:           manualDome(),
		},
		logic.ModeAutomated: {},
		logic.ModeHybrid: {
			Enabled:        true,
			Expo:           1,
			SpeedLimit:     25,
			TaperTurn:      true,
			TaperFallRate:  60,
			TurnClampAbove: 80,
			TurnClamp:      40,
		},
		logic.ModeCarpet: {
			Enabled:        true,
			Expo:           1.3,
			SpeedLimit:     50,
			DeadZone:       2,
			TaperFallRate:  45,
			TurnClampAbove: 40,
			TurnClamp:      100,
			Dome:           manualDome(),
		},
	}
}

// Validate checks the profile ranges.
func (p Profile) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Expo <= 0 {
		return fmt.Errorf("expo must be positive, got %v", p.Expo)
	}
	if p.SpeedLimit < 0 || p.SpeedLimit > MaxPower {
		return fmt.Errorf("speed_limit %d outside 0..%d", p.SpeedLimit, MaxPower)
	}
	if p.DeadZone < 0 || p.DeadZone >= MaxPower {
		return fmt.Errorf("dead_zone %d outside 0..%d", p.DeadZone, MaxPower-1)
	}
	if p.TaperTurn && p.TaperFallRate < 5 {
		return fmt.Errorf("taper_fall_rate %d must be at least 5", p.TaperFallRate)
	}
	if p.TurnClamp < 0 || p.TurnClamp > MaxPower {
		return fmt.Errorf("turn_clamp %d outside 0..%d", p.TurnClamp, MaxPower)
	}
	if p.Dome.Enabled {
		d := p.Dome
		if d.SpeedLimit < 0 || d.SpeedLimit > 100 {
			return fmt.Errorf("dome speed_limit %d outside 0..100", d.SpeedLimit)
		}
		if d.LeftGain < 0 || d.RightGain < 0 {
			return fmt.Errorf("dome gains must not be negative")
		}
		if d.FineControlMultiplier < 1 {
			return fmt.Errorf("dome fine_control_multiplier must be at least 1")
		}
		if d.MaxFlickSpeed < 0 || d.FlickMinDuration < 0 {
			return fmt.Errorf("dome flick settings must not be negative")
		}
	}
	return nil
}

// Output is one tick's mapped commands.
type Output struct {
	Drive int
	Turn  int
	Dome  int

	// DriveFresh and TurnFresh report whether the axis was computed from a
	// pulse that arrived this tick. A held reading is not fresh.
	DriveFresh bool
	TurnFresh  bool

	// DomeManual is set when the mode drives the dome from the stick.
	DomeManual bool
}

// Mapper applies the active mode's profile. It keeps the turn taper and dome
// flick state between ticks.
type Mapper struct {
	profiles map[logic.Mode]Profile
	mode     logic.Mode

	lastTurn int

	flickActive bool
	flickStart  time.Time
	lastDome    int
}

// NewMapper creates a mapper with one profile per mode. Modes without a
// profile produce zero output.
func NewMapper(profiles map[logic.Mode]Profile) *Mapper {
	return &Mapper{profiles: profiles}
}

// Map computes the commands for f in mode.
func (m *Mapper) Map(f pwm.Frame, mode logic.Mode, now time.Time) Output {
	if mode != m.mode {
		m.reset(mode)
	}
	p, ok := m.profiles[mode]
	if !ok || !p.Enabled {
		return Output{DriveFresh: true, TurnFresh: true}
	}

	rawTurn, turnFresh := f.Reading(pwm.A1)
	rawDrive, driveFresh := f.Reading(pwm.A2)
	if !turnFresh {
		rawTurn = pwm.Neutral
	}
	if !driveFresh {
		rawDrive = pwm.Neutral
	}

	turn := Scale(Constrain(rawTurn, 1000, 2000), 1000, 2000, -MaxPower, MaxPower)
	drive := Scale(Constrain(rawDrive, 1000, 2000), 1000, 2000, -MaxPower, MaxPower)
	if abs(drive) <= p.DeadZone {
		drive = 0
	}
	if abs(turn) <= p.DeadZone {
		turn = 0
	}
	if p.TurnClampAbove > 0 && abs(drive) > p.TurnClampAbove {
		turn = Constrain(turn, -p.TurnClamp, p.TurnClamp)
	}

	out := Output{
		Drive:      Expo(drive, p.Expo, p.SpeedLimit),
		DriveFresh: driveFresh && f.New(pwm.A2),
		TurnFresh:  turnFresh && f.New(pwm.A1),
	}

	switch {
	case turn != 0:
		m.lastTurn = Expo(turn, p.Expo, p.SpeedLimit)
	case p.TaperTurn:
		m.lastTurn = taperToZero(m.lastTurn, p.SpeedLimit, p.TaperFallRate)
	default:
		m.lastTurn = 0
	}
	out.Turn = m.lastTurn

	if p.Dome.Enabled {
		out.DomeManual = true
		out.Dome = m.mapDome(f, p, now)
	}
	return out
}

func (m *Mapper) mapDome(f pwm.Frame, p Profile, now time.Time) int {
	d := p.Dome
	raw := Constrain(f.Value(pwm.B1), 1000, 2000)
	var input int
	if raw >= pwm.Neutral {
		input = int(float64(Scale(raw, 1500, 2000, 0, 100)) * d.RightGain)
	} else {
		input = int(float64(Scale(raw, 1000, 1500, -100, 0)) * d.LeftGain)
	}

	curved := Expo(input, p.Expo, d.SpeedLimit)
	if !m.flickActive {
		curved *= d.FineControlMultiplier
	}

	speed := curved
	if abs(input) <= d.DeadZone {
		speed = 0
		if m.flickActive && now.Sub(m.flickStart) < d.FlickMinDuration {
			speed = Constrain(m.lastDome, -d.MaxFlickSpeed, d.MaxFlickSpeed)
		} else {
			m.flickActive = false
		}
	} else if abs(curved) >= d.FlickThreshold {
		m.flickStart = now
		m.flickActive = true
	}
	m.lastDome = speed
	return speed
}

func (m *Mapper) reset(mode logic.Mode) {
	m.mode = mode
	m.lastTurn = 0
	m.flickActive = false
	m.lastDome = 0
}

// Scale linearly maps x from [inMin,inMax] to [outMin,outMax] with integer
// arithmetic truncating toward zero.
func Scale(x, inMin, inMax, outMin, outMax int) int {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// Constrain limits x to [lo,hi].
func Constrain(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Expo shapes input in [-127,127] with a power curve and scales it to limit,
// truncating toward zero and keeping the sign.
func Expo(input int, curve float64, limit int) int {
	normalized := float64(abs(input)) / MaxPower
	curved := int(math.Pow(normalized, curve) * float64(limit))
	if input < 0 {
		return -curved
	}
	return curved
}

func taperToZero(v, speedLimit, fallRate int) int {
	if v == 0 || speedLimit == 0 {
		return 0
	}
	rate := Scale(abs(v), 0, speedLimit, 5, fallRate)
	if v > 0 {
		v -= rate
		if v < 0 {
			v = 0
		}
	} else {
		v += rate
		if v > 0 {
			v = 0
		}
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
