// Package indicator blinks a status LED to show the current mode: N short
// blinks for mode N, then a pause. It is driven from the control tick and
// never sleeps.
package indicator

import (
	"fmt"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// Output is a single on/off line.
type Output interface {
	Set(on bool) error
	Close() error
}

// Config configures the LED line and blink timing.
type Config struct {
	Chip  string        `yaml:"chip"`
	Pin   int           `yaml:"pin"` // negative disables the indicator
	On    time.Duration `yaml:"on"`
	Off   time.Duration `yaml:"off"`
	Pause time.Duration `yaml:"pause"`
}

// DefaultConfig returns the stock timing on GPIO 25.
func DefaultConfig() Config {
	return Config{
		Chip:  "gpiochip0",
		Pin:   25,
		On:    200 * time.Millisecond,
		Off:   200 * time.Millisecond,
		Pause: 1200 * time.Millisecond,
	}
}

// Validate checks the timing.
func (c Config) Validate() error {
	if c.On <= 0 || c.Off <= 0 || c.Pause <= 0 {
		return fmt.Errorf("indicator: on, off and pause must be positive")
	}
	return nil
}

// Blinker computes the LED level from the mode and the tick time.
type Blinker struct {
	cfg Config
	out Output

	mode  logic.Mode
	start time.Time
	lit   bool
	known bool
}

// NewBlinker drives out with the timing in cfg.
func NewBlinker(cfg Config, out Output) *Blinker {
	return &Blinker{cfg: cfg, out: out}
}

// Level returns whether the LED should be lit at offset p into the cycle for
// mode.
func (b *Blinker) Level(mode logic.Mode, p time.Duration) bool {
	period := b.cfg.On + b.cfg.Off
	n := time.Duration(mode)
	if n <= 0 {
		return false
	}
	cycle := n*period + b.cfg.Pause
	p %= cycle
	if p >= n*period {
		return false
	}
	return p%period < b.cfg.On
}

// Update sets the output for mode at now. A mode change restarts the cycle.
// The output is written only when the level changes.
func (b *Blinker) Update(mode logic.Mode, now time.Time) error {
	if mode != b.mode || b.start.IsZero() {
		b.mode = mode
		b.start = now
	}
	lit := b.Level(mode, now.Sub(b.start))
	if b.known && lit == b.lit {
		return nil
	}
	if err := b.out.Set(lit); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	b.lit = lit
	b.known = true
	return nil
}

// Close turns the LED off and releases the output.
func (b *Blinker) Close() error {
	if err := b.out.Set(false); err != nil {
		b.out.Close()
		return fmt.Errorf("indicator: %w", err)
	}
	return b.out.Close()
}

// nopOutput stands in when no LED is wired.
type nopOutput struct{}

func (nopOutput) Set(bool) error { return nil }
func (nopOutput) Close() error   { return nil }

// Open returns the GPIO output in cfg, or a no-op output when Pin is negative.
func Open(cfg Config) (Output, error) {
	if cfg.Pin < 0 {
		return nopOutput{}, nil
	}
	out, err := NewGPIOOutput(cfg.Chip, cfg.Pin)
	if err != nil {
		return nil, err
	}
	return out, nil
}
