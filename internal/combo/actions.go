package combo

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// AudioEffect is the change an action makes to audio suppression.
type AudioEffect string

const (
	AudioUnchanged AudioEffect = ""
	AudioSuppress  AudioEffect = "suppress"
	AudioEnable    AudioEffect = "enable"
)

// Action is the auxiliary behaviour bound to an action combo.
type Action struct {
	Label   string      `yaml:"label"`
	Command string      `yaml:"command"` // sent verbatim to the auxiliary controller
	Audio   AudioEffect `yaml:"audio,omitempty"`
}

// Actions maps action combos to their behaviour. Unlisted combos do nothing
// beyond becoming active.
type Actions map[logic.ComboID]Action

// DefaultActions returns the dome-panel sequences of the stock MarcDuino setup.
func DefaultActions() Actions {
	return Actions{
		5:  {Label: "Awake+", Command: ":SE03\r", Audio: AudioSuppress},
		6:  {Label: "Quiet", Command: ":SE00\r", Audio: AudioEnable},
		7:  {Label: "Full Awake", Command: ":SE02\r", Audio: AudioSuppress},
		8:  {Label: "Mid Awake", Command: ":SE01\r", Audio: AudioSuppress},
		9:  {Label: "Leia Message", Command: ":SE10\r"},
		10: {Label: "Scream", Command: ":SE06\r"},
	}
}

// Validate checks that every entry is an action combo with a known effect.
func (a Actions) Validate() error {
	for id, act := range a {
		if !id.IsAction() {
			return fmt.Errorf("combo action %d: not an action combo", id)
		}
		switch act.Audio {
		case AudioUnchanged, AudioSuppress, AudioEnable:
		default:
			return fmt.Errorf("combo action %d: unknown audio effect %q", id, act.Audio)
		}
	}
	return nil
}

// Commander sends raw command strings to the auxiliary controller.
type Commander interface {
	Send(cmd string) error
}

// Run performs the action bound to id: it updates ctx.Suppressed and sends
// the command. It reports false if id has no action. A send error is
// returned with the event so the caller can log it; suppression still applies.
func (a Actions) Run(id logic.ComboID, ctx *logic.Context, link Commander, now time.Time) (logic.Event, bool, error) {
	act, ok := a[id]
	if !ok {
		return logic.Event{}, false, nil
	}

	switch act.Audio {
	case AudioSuppress:
		ctx.Suppressed = true
	case AudioEnable:
		ctx.Suppressed = false
	}

	var err error
	if act.Command != "" && link != nil {
		if err = link.Send(act.Command); err != nil {
			err = fmt.Errorf("combo %d %s: %w", id, act.Label, err)
		}
	}
	log.Printf("combo: action %d %s suppressed=%t", id, act.Label, ctx.Suppressed)

	return logic.Event{
		Timestamp: now,
		Type:      logic.EventAction,
		Mode:      ctx.Mode,
		Combo:     id,
		Label:     act.Label,
	}, true, err
}
