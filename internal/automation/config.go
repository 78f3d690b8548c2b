package automation

import (
	"fmt"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// Category is a bank of tracks picked from for ambient audio.
type Category struct {
	Label string `yaml:"label"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// Profile is the cadence for one mode.
type Profile struct {
	// Settle is the quiet period after entering the mode.
	Settle time.Duration `yaml:"settle"`

	MoveDelayMin time.Duration `yaml:"move_delay_min"`
	MoveDelayMax time.Duration `yaml:"move_delay_max"`
	AngleMin     int           `yaml:"angle_min"` // degrees
	AngleMax     int           `yaml:"angle_max"`
	SpeedMin     int           `yaml:"speed_min"`
	SpeedMax     int           `yaml:"speed_max"`
	BaseSpeed    int           `yaml:"base_speed"` // speed at which BaseMsPerDegree holds

	// SwingsBeforeCorrection free moves are made before a move back to centre.
	SwingsBeforeCorrection int `yaml:"swings_before_correction"`

	AudioIntervalMin time.Duration `yaml:"audio_interval_min"`
	AudioIntervalMax time.Duration `yaml:"audio_interval_max"`
	Categories       []Category    `yaml:"categories"`
}

// Config holds the dome timing model and the per-mode profiles. Modes without
// a profile are not automated.
type Config struct {
	BaseMsPerDegree float64 `yaml:"base_ms_per_degree"`
	CurveFactor     float64 `yaml:"curve_factor"`
	Epsilon         float64 `yaml:"epsilon"` // degrees of drift that force a correction

	// Free moves are scaled by these to compensate for the dome overshooting
	// to the right and undershooting to the left.
	RightFactor float64 `yaml:"right_factor"`
	LeftFactor  float64 `yaml:"left_factor"`

	Profiles map[logic.Mode]Profile `yaml:"profiles"`
}

func ambientCategories() []Category {
	return []Category{
		{Label: "Happy", Start: 1, End: 16},
		{Label: "Sad", Start: 31, End: 35},
		{Label: "Talking", Start: 61, End: 76},
	}
}

// DefaultConfig returns the stock Automated and Hybrid cadences.
func DefaultConfig() Config {
	return Config{
		BaseMsPerDegree: 1700.0 / 90.0,
		CurveFactor:     1.4,
		Epsilon:         0.5,
		RightFactor:     1.06,
		LeftFactor:      0.96,
		Profiles: map[logic.Mode]Profile{
			logic.ModeAutomated: {
				Settle:                 3 * time.Second,
				MoveDelayMin:           8 * time.Second,
				MoveDelayMax:           12 * time.Second,
				AngleMin:               10,
				AngleMax:               45,
				SpeedMin:               25,
				SpeedMax:               32,
				BaseSpeed:              30,
				SwingsBeforeCorrection: 2,
				AudioIntervalMin:       20 * time.Second,
				AudioIntervalMax:       60 * time.Second,
				Categories:             ambientCategories(),
			},
			logic.ModeHybrid: {
				Settle:                 3 * time.Second,
				MoveDelayMin:           10 * time.Second,
				MoveDelayMax:           30 * time.Second,
				AngleMin:               10,
				AngleMax:               90,
				SpeedMin:               25,
				SpeedMax:               32,
				BaseSpeed:              30,
				SwingsBeforeCorrection: 2,
				AudioIntervalMin:       5 * time.Second,
				AudioIntervalMax:       15 * time.Second,
				Categories:             ambientCategories(),
			},
		},
	}
}

// Validate checks the timing model and every profile.
func (c Config) Validate() error {
	if c.BaseMsPerDegree <= 0 {
		return fmt.Errorf("automation: base_ms_per_degree must be positive")
	}
	if c.CurveFactor < 0 || c.Epsilon < 0 {
		return fmt.Errorf("automation: curve_factor and epsilon must not be negative")
	}
	if c.RightFactor <= 0 || c.LeftFactor <= 0 {
		return fmt.Errorf("automation: direction factors must be positive")
	}
	for mode, p := range c.Profiles {
		if !mode.Valid() {
			return fmt.Errorf("automation: unknown mode %d", mode)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("automation mode %d: %w", mode, err)
		}
	}
	return nil
}

func (p Profile) validate() error {
	if p.Settle < 0 {
		return fmt.Errorf("settle must not be negative")
	}
	if p.MoveDelayMin < 0 || p.MoveDelayMin > p.MoveDelayMax {
		return fmt.Errorf("move delay %v..%v out of order", p.MoveDelayMin, p.MoveDelayMax)
	}
	if p.AngleMin <= 0 || p.AngleMin > p.AngleMax {
		return fmt.Errorf("angle %d..%d out of order", p.AngleMin, p.AngleMax)
	}
	if p.SpeedMin <= 0 || p.SpeedMin > p.SpeedMax || p.SpeedMax > 100 {
		return fmt.Errorf("speed %d..%d outside 1..100 or out of order", p.SpeedMin, p.SpeedMax)
	}
	if p.BaseSpeed <= 0 {
		return fmt.Errorf("base_speed must be positive")
	}
	if p.SwingsBeforeCorrection < 1 {
		return fmt.Errorf("swings_before_correction must be at least 1")
	}
	if p.AudioIntervalMin < 0 || p.AudioIntervalMin > p.AudioIntervalMax {
		return fmt.Errorf("audio interval %v..%v out of order", p.AudioIntervalMin, p.AudioIntervalMax)
	}
	if len(p.Categories) == 0 {
		return fmt.Errorf("at least one audio category is required")
	}
	for _, c := range p.Categories {
		if c.Start < 1 || c.End > 255 || c.Start > c.End {
			return fmt.Errorf("category %s tracks %d..%d outside 1..255 or out of order", c.Label, c.Start, c.End)
		}
	}
	return nil
}
