// Package config holds the whole daemon configuration: the stock tuning,
// loading a YAML overlay and validating the result before anything is opened.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/sweeney/droid-core/internal/audio"
	"github.com/sweeney/droid-core/internal/automation"
	"github.com/sweeney/droid-core/internal/combo"
	"github.com/sweeney/droid-core/internal/drive"
	"github.com/sweeney/droid-core/internal/indicator"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/marcduino"
	"github.com/sweeney/droid-core/internal/mqtt"
	"github.com/sweeney/droid-core/internal/pwm"
	"github.com/sweeney/droid-core/internal/sabertooth"
	"github.com/sweeney/droid-core/internal/safety"
)

// HTTP configures the status server.
type HTTP struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// Config is the complete daemon configuration.
type Config struct {
	Tick time.Duration `yaml:"tick"`

	// StartMode is the mode the droid is in before any mode-select combo.
	StartMode logic.Mode `yaml:"start_mode"`

	Radio      pwm.Config                   `yaml:"radio"`
	Combo      combo.Config                 `yaml:"combo"`
	Drive      map[logic.Mode]drive.Profile `yaml:"drive"`
	Automation automation.Config            `yaml:"automation"`
	Safety     safety.Config                `yaml:"safety"`
	Actuator   sabertooth.Config            `yaml:"actuator"`
	Audio      audio.Config                 `yaml:"audio"`
	Soundboard audio.SoundboardConfig       `yaml:"soundboard"`
	MarcDuino  marcduino.Config             `yaml:"marcduino"`
	Indicator  indicator.Config             `yaml:"indicator"`
	Telemetry  mqtt.Config                  `yaml:"telemetry"`
	HTTP       HTTP                         `yaml:"http"`
}

// Default returns the stock tuning.
func Default() Config {
	return Config{
		Tick:       20 * time.Millisecond,
		StartMode:  logic.ModeManual,
		Radio:      pwm.DefaultConfig(),
		Combo:      combo.DefaultConfig(),
		Drive:      drive.DefaultProfiles(),
		Automation: automation.DefaultConfig(),
		Safety:     safety.DefaultConfig(),
		Actuator:   sabertooth.DefaultConfig(),
		Audio:      audio.DefaultConfig(),
		Soundboard: audio.DefaultSoundboardConfig(),
		MarcDuino:  marcduino.DefaultConfig(),
		Indicator:  indicator.DefaultConfig(),
		Telemetry:  mqtt.DefaultConfig(),
		HTTP:       HTTP{Addr: ":80"},
	}
}

// Load reads path and overlays it on the defaults. Scalars and structs are
// merged field by field; a map entry or list in the file replaces the default
// entry as a whole. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays YAML data on cfg. Unknown keys are an error.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}

// Validate checks every section and the settings that span sections.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	if !c.StartMode.Valid() {
		return fmt.Errorf("start_mode %d outside 1..4", c.StartMode)
	}
	if err := validateRadio(c.Radio); err != nil {
		return err
	}
	if err := c.Combo.Validate(); err != nil {
		return err
	}
	for _, mode := range logic.Modes {
		p, ok := c.Drive[mode]
		if !ok {
			return fmt.Errorf("drive: no profile for %s", mode)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("drive %s: %w", mode, err)
		}
	}
	for mode := range c.Drive {
		if !mode.Valid() {
			return fmt.Errorf("drive: unknown mode %d", mode)
		}
	}

	validators := []func() error{
		c.Automation.Validate,
		c.Safety.Validate,
		c.Actuator.Validate,
		c.Audio.Validate,
		c.Soundboard.Validate,
		c.MarcDuino.Validate,
		c.Indicator.Validate,
		c.Telemetry.Validate,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}

	if err := checkKillChannels(c); err != nil {
		return err
	}
	for _, b := range c.Soundboard.Banks {
		if _, ok := c.Radio.Channels[b.Channel]; !ok {
			return fmt.Errorf("soundboard bank %q: channel %s is not wired", b.Label, b.Channel)
		}
	}
	if c.Indicator.Pin >= 0 && c.Indicator.Chip == c.Radio.Chip {
		for name, cc := range c.Radio.Channels {
			if cc.Pin == c.Indicator.Pin {
				return fmt.Errorf("indicator pin %d already used by channel %s", cc.Pin, name)
			}
		}
	}
	return checkPorts(map[string]string{
		"actuator":  c.Actuator.Port,
		"audio":     serialPort(c.Audio),
		"marcduino": c.MarcDuino.Port,
	})
}

func validateRadio(r pwm.Config) error {
	if r.Valid.Min <= 0 || r.Valid.Min >= r.Valid.Max {
		return fmt.Errorf("radio: valid band %d..%d out of order", r.Valid.Min, r.Valid.Max)
	}
	if r.StaleAfter < 0 {
		return fmt.Errorf("radio: stale_after must not be negative")
	}
	pins := make(map[int]string)
	for name, cc := range r.Channels {
		if _, err := pwm.ParseChannel(name); err != nil {
			return fmt.Errorf("radio: %w", err)
		}
		if cc.Pin < 0 {
			return fmt.Errorf("radio channel %s: pin %d must not be negative", name, cc.Pin)
		}
		if other, ok := pins[cc.Pin]; ok {
			return fmt.Errorf("radio: pin %d used by both %s and %s", cc.Pin, other, name)
		}
		pins[cc.Pin] = name
		for _, m := range cc.Modes {
			if !m.Valid() {
				return fmt.Errorf("radio channel %s: unknown mode %d", name, m)
			}
		}
	}
	return nil
}

// checkKillChannels rejects kill terms that read a channel the mode leaves
// detached, since they can never hold.
func checkKillChannels(c Config) error {
	for mode, terms := range c.Safety.Kill {
		for _, term := range terms {
			for _, d := range term.Directions {
				ch := term.Channel(d)
				cc, ok := c.Radio.Channels[ch.String()]
				if !ok || !channelEnabled(cc, mode) {
					return fmt.Errorf("safety: %s kill on %s %s reads %s, which is not attached in that mode",
						mode, term.Controller, d, ch)
				}
			}
		}
	}
	return nil
}

func channelEnabled(cc pwm.ChannelConfig, mode logic.Mode) bool {
	if len(cc.Modes) == 0 {
		return true
	}
	for _, m := range cc.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func serialPort(a audio.Config) string {
	if a.Device == audio.DeviceLocal {
		return ""
	}
	return a.Port
}

func checkPorts(ports map[string]string) error {
	seen := make(map[string]string)
	for owner, port := range ports {
		if port == "" {
			continue
		}
		if other, ok := seen[port]; ok {
			return fmt.Errorf("serial port %s used by both %s and %s", port, other, owner)
		}
		seen[port] = owner
	}
	return nil
}
