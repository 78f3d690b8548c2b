// Package combo recognizes joystick+button combos, selects the operating mode
// and runs the auxiliary action bound to each action combo.
package combo

import (
	"fmt"
	"strings"

	"github.com/sweeney/droid-core/internal/pwm"
)

// Direction is a classified joystick position.
type Direction int

const (
	Center Direction = iota
	Down
	Up
	Left
	Right
)

// Offset returns the amount added to a button's base id when the joystick
// is held in d.
func (d Direction) Offset() int {
	switch d {
	case Up:
		return 4
	case Left:
		return 8
	case Right:
		return 12
	default:
		return 0
	}
}

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "center"
	}
}

// ParseDirection converts a name such as "down" into a Direction.
func ParseDirection(s string) (Direction, error) {
	for d := Down; d <= Right; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return Center, fmt.Errorf("unknown direction %q", s)
}

// UnmarshalYAML reads a direction name.
func (d *Direction) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML writes the direction name.
func (d Direction) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Directions is a set of directions held at the same time.
type Directions uint8

// Has reports whether d is in the set.
func (s Directions) Has(d Direction) bool {
	return s&(1<<uint(d)) != 0
}

func (s Directions) with(d Direction) Directions {
	return s | 1<<uint(d)
}

// Primary returns the single direction used for combos: down, then up, then
// left, then right. An empty set is Center.
func (s Directions) Primary() Direction {
	for _, d := range []Direction{Down, Up, Left, Right} {
		if s.Has(d) {
			return d
		}
	}
	return Center
}

// Controller identifies one of the two radio receivers.
type Controller int

const (
	ControllerA Controller = iota
	ControllerB
)

func (c Controller) String() string {
	if c == ControllerB {
		return "B"
	}
	return "A"
}

// UnmarshalYAML reads "A" or "B".
func (c *Controller) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch strings.ToUpper(s) {
	case "A":
		*c = ControllerA
	case "B":
		*c = ControllerB
	default:
		return fmt.Errorf("unknown controller %q", s)
	}
	return nil
}

// MarshalYAML writes "A" or "B".
func (c Controller) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// Stick returns the turn and drive channels of the controller's joystick.
func (c Controller) Stick() (turn, drive pwm.ChannelID) {
	if c == ControllerB {
		return pwm.B1, pwm.B2
	}
	return pwm.A1, pwm.A2
}

// Thresholds are the pulse-width bands that classify a joystick direction.
type Thresholds struct {
	DownMin  int `yaml:"down_min"`
	DownMax  int `yaml:"down_max"`
	UpMin    int `yaml:"up_min"`
	UpMax    int `yaml:"up_max"`
	LeftMax  int `yaml:"left_max"`
	RightMin int `yaml:"right_min"`
}

// DefaultThresholds returns the bands used by the receivers' sticks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DownMin:  900,
		DownMax:  1300,
		UpMin:    1700,
		UpMax:    2100,
		LeftMax:  1300,
		RightMin: 1700,
	}
}

// Held returns every direction the controller's stick is in. Stale channels
// never classify.
func (th Thresholds) Held(f pwm.Frame, c Controller) Directions {
	turn, drive := c.Stick()
	var s Directions
	if w, ok := f.Reading(drive); ok {
		if w >= th.DownMin && w <= th.DownMax {
			s = s.with(Down)
		}
		if w >= th.UpMin && w <= th.UpMax {
			s = s.with(Up)
		}
	}
	if w, ok := f.Reading(turn); ok && w > 0 {
		if w <= th.LeftMax {
			s = s.with(Left)
		}
		if w >= th.RightMin {
			s = s.with(Right)
		}
	}
	return s
}

// Combined returns the union of both controllers' held directions. Either
// receiver's stick counts for combos.
func (th Thresholds) Combined(f pwm.Frame) Directions {
	return th.Held(f, ControllerA) | th.Held(f, ControllerB)
}
