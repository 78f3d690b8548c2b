package safety

import (
	"testing"
	"time"

	"github.com/sweeney/droid-core/internal/automation"
	"github.com/sweeney/droid-core/internal/combo"
	"github.com/sweeney/droid-core/internal/drive"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func centred() map[pwm.ChannelID]int {
	return map[pwm.ChannelID]int{pwm.A1: 1500, pwm.A2: 1500, pwm.B1: 1500, pwm.B2: 1500}
}

func frame(over map[pwm.ChannelID]int) pwm.Frame {
	m := centred()
	for ch, w := range over {
		m[ch] = w
	}
	return pwm.FrameOf(m)
}

func newArbiter() *Arbiter {
	return NewArbiter(DefaultConfig(), combo.DefaultThresholds())
}

func TestKillMapping(t *testing.T) {
	tests := []struct {
		name string
		mode logic.Mode
		over map[pwm.ChannelID]int
		want bool
	}{
		{"manual centred", logic.ModeManual, nil, false},
		{"manual B up", logic.ModeManual, map[pwm.ChannelID]int{pwm.B2: 1900}, true},
		{"manual B down", logic.ModeManual, map[pwm.ChannelID]int{pwm.B2: 1100}, true},
		{"manual B right", logic.ModeManual, map[pwm.ChannelID]int{pwm.B1: 1900}, false},
		{"manual A up", logic.ModeManual, map[pwm.ChannelID]int{pwm.A2: 1900}, false},
		{"automated A left", logic.ModeAutomated, map[pwm.ChannelID]int{pwm.A1: 1100}, true},
		{"automated B up", logic.ModeAutomated, map[pwm.ChannelID]int{pwm.B2: 1900}, true},
		{"hybrid A up", logic.ModeHybrid, map[pwm.ChannelID]int{pwm.A2: 1900}, false},
		{"hybrid B up", logic.ModeHybrid, map[pwm.ChannelID]int{pwm.B2: 1900}, true},
		{"hybrid B right", logic.ModeHybrid, map[pwm.ChannelID]int{pwm.B1: 1900}, false},
		{"automated B left", logic.ModeAutomated, map[pwm.ChannelID]int{pwm.B1: 1100}, false},
		{"carpet B up", logic.ModeCarpet, map[pwm.ChannelID]int{pwm.B2: 1900}, false},
		{"carpet B left", logic.ModeCarpet, map[pwm.ChannelID]int{pwm.B1: 1100}, true},
		{"carpet B down", logic.ModeCarpet, map[pwm.ChannelID]int{pwm.B2: 1100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newArbiter().KillHeld(frame(tt.over), tt.mode); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKillTermChannel(t *testing.T) {
	b := KillTerm{Controller: combo.ControllerB}
	if b.Channel(combo.Left) != pwm.B1 || b.Channel(combo.Up) != pwm.B2 {
		t.Errorf("B: left %s up %s", b.Channel(combo.Left), b.Channel(combo.Up))
	}
	a := KillTerm{Controller: combo.ControllerA}
	if a.Channel(combo.Right) != pwm.A1 || a.Channel(combo.Down) != pwm.A2 {
		t.Errorf("A: right %s down %s", a.Channel(combo.Right), a.Channel(combo.Down))
	}
}

func TestKillZeroesDriveAndTurn(t *testing.T) {
	a := newArbiter()
	out := drive.Output{Drive: 25, Turn: -10, DriveFresh: true, TurnFresh: true}

	d := a.Evaluate(frame(map[pwm.ChannelID]int{pwm.B2: 1900}), logic.ModeManual, out, t0)
	if !d.Kill || d.Drive != 0 || d.Turn != 0 {
		t.Errorf("under kill: got %+v", d)
	}

	d = a.Evaluate(frame(nil), logic.ModeManual, out, t0.Add(20*time.Millisecond))
	if d.Kill || d.Drive != 25 || d.Turn != -10 {
		t.Errorf("after release: got %+v", d)
	}
}

func TestKillEdgesReportedOnce(t *testing.T) {
	a := newArbiter()
	out := drive.Output{DriveFresh: true, TurnFresh: true}
	held := frame(map[pwm.ChannelID]int{pwm.B2: 1900})

	var events []logic.Event
	now := t0
	step := func(f pwm.Frame, n int) {
		for i := 0; i < n; i++ {
			events = append(events, a.Evaluate(f, logic.ModeManual, out, now).Events...)
			now = now.Add(20 * time.Millisecond)
		}
	}
	step(frame(nil), 5)
	step(held, 50)
	step(frame(nil), 50)

	if len(events) != 2 {
		t.Fatalf("expected exactly two edges, got %d: %+v", len(events), events)
	}
	if events[0].Type != logic.EventKillAsserted || events[1].Type != logic.EventKillReleased {
		t.Errorf("edge order: got %s, %s", events[0].Type, events[1].Type)
	}
	if a.Killed() {
		t.Error("kill should be released")
	}
}

func TestAxisTimeout(t *testing.T) {
	a := Axis{Timeout: 50 * time.Millisecond}

	if got := a.Update(25, true, t0); got != 25 {
		t.Fatalf("fresh: got %d", got)
	}
	if got := a.Update(0, false, t0.Add(30*time.Millisecond)); got != 25 {
		t.Errorf("held inside timeout: got %d, want 25", got)
	}
	if got := a.Update(0, false, t0.Add(50*time.Millisecond)); got != 25 {
		t.Errorf("held at exactly the timeout: got %d, want 25", got)
	}
	if got := a.Update(0, false, t0.Add(51*time.Millisecond)); got != 0 {
		t.Errorf("after timeout: got %d, want 0", got)
	}
	if got := a.Update(-12, true, t0.Add(60*time.Millisecond)); got != -12 {
		t.Errorf("recovers on fresh input: got %d", got)
	}
}

func TestAxisNeverSeen(t *testing.T) {
	var a Axis
	a.Timeout = time.Second
	if got := a.Update(40, false, t0); got != 0 {
		t.Errorf("stale with no history: got %d, want 0", got)
	}
}

func TestAxesTimeOutIndependently(t *testing.T) {
	a := newArbiter()
	a.Evaluate(frame(nil), logic.ModeHybrid, drive.Output{Drive: 20, Turn: 15, DriveFresh: true, TurnFresh: true}, t0)

	// Turn keeps arriving, drive goes stale.
	out := drive.Output{Turn: 10, TurnFresh: true}
	d := a.Evaluate(frame(nil), logic.ModeHybrid, out, t0.Add(100*time.Millisecond))
	if d.Drive != 20 || d.Turn != 10 {
		t.Errorf("inside hybrid timeout: got %+v", d)
	}
	d = a.Evaluate(frame(nil), logic.ModeHybrid, out, t0.Add(200*time.Millisecond))
	if d.Drive != 0 || d.Turn != 10 {
		t.Errorf("drive should time out alone: got %+v", d)
	}
}

func TestModeChangeResetsAxes(t *testing.T) {
	a := newArbiter()
	a.Evaluate(frame(nil), logic.ModeManual, drive.Output{Drive: 20, DriveFresh: true}, t0)

	d := a.Evaluate(frame(nil), logic.ModeCarpet, drive.Output{}, t0.Add(10*time.Millisecond))
	if d.Drive != 0 {
		t.Errorf("held value should not cross a mode change: got %d", d.Drive)
	}
}

func TestDomeArbitration(t *testing.T) {
	a := newArbiter()
	manual := drive.Output{Dome: 60, DomeManual: true}

	if got := a.Dome(manual, automation.Result{}, false); got != 60 {
		t.Errorf("manual dome: got %d", got)
	}
	if got := a.Dome(manual, automation.Result{}, true); got != 0 {
		t.Errorf("manual dome under kill: got %d, want 0", got)
	}

	moving := automation.Result{Active: true, Dome: -28}
	if got := a.Dome(drive.Output{}, moving, true); got != -28 {
		t.Errorf("committed automation move under kill: got %d, want -28", got)
	}
	if got := a.Dome(drive.Output{}, automation.Result{}, false); got != 0 {
		t.Errorf("no dome source: got %d", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	c := DefaultConfig()
	c.Timeouts[logic.ModeManual] = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero timeout")
	}

	c = DefaultConfig()
	c.Kill[logic.ModeManual] = []KillTerm{{Controller: combo.ControllerA}}
	if err := c.Validate(); err == nil {
		t.Error("expected error for a term without directions")
	}

	c = DefaultConfig()
	c.Kill[9] = nil
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}
