package drive

import (
	"testing"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sticks(turn, drive, dome int) pwm.Frame {
	return pwm.FrameOf(map[pwm.ChannelID]int{pwm.A1: turn, pwm.A2: drive, pwm.B1: dome})
}

func TestMapCenter(t *testing.T) {
	for _, mode := range logic.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			m := NewMapper(DefaultProfiles())
			out := m.Map(sticks(1500, 1500, 1500), mode, t0)
			if out.Drive != 0 || out.Turn != 0 || out.Dome != 0 {
				t.Errorf("centre: got %+v", out)
			}
		})
	}
}

func TestMapDrive(t *testing.T) {
	tests := []struct {
		name  string
		mode  logic.Mode
		drive int
		want  int
	}{
		{"manual full forward", logic.ModeManual, 2000, 25},
		{"manual full reverse", logic.ModeManual, 1000, -25},
		{"manual half forward", logic.ModeManual, 1750, 12},
		{"manual clamps above 2000", logic.ModeManual, 2150, 25},
		{"carpet full forward", logic.ModeCarpet, 2000, 50},
		{"carpet deadzone", logic.ModeCarpet, 1505, 0},
		{"hybrid full forward", logic.ModeHybrid, 2000, 25},
		{"automated disabled", logic.ModeAutomated, 2000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(DefaultProfiles())
			out := m.Map(sticks(1500, tt.drive, 1500), tt.mode, t0)
			if out.Drive != tt.want {
				t.Errorf("drive: got %d, want %d", out.Drive, tt.want)
			}
			if !out.DriveFresh {
				t.Error("drive should be fresh")
			}
		})
	}
}

func TestHybridTurnClamp(t *testing.T) {
	m := NewMapper(DefaultProfiles())

	// |drive| 127 > 80 limits turn to 40 before the curve: 40/127*25 = 7.
	out := m.Map(sticks(2000, 2000, 1500), logic.ModeHybrid, t0)
	if out.Turn != 7 {
		t.Errorf("clamped turn: got %d, want 7", out.Turn)
	}

	out = m.Map(sticks(2000, 1500, 1500), logic.ModeHybrid, t0)
	if out.Turn != 25 {
		t.Errorf("unclamped turn: got %d, want 25", out.Turn)
	}
}

func TestTurnRelease(t *testing.T) {
	t.Run("manual drops to zero", func(t *testing.T) {
		m := NewMapper(DefaultProfiles())
		m.Map(sticks(2000, 1500, 1500), logic.ModeManual, t0)
		if out := m.Map(sticks(1500, 1500, 1500), logic.ModeManual, t0); out.Turn != 0 {
			t.Errorf("got %d, want 0", out.Turn)
		}
	})

	t.Run("taper steps toward zero", func(t *testing.T) {
		profiles := DefaultProfiles()
		p := profiles[logic.ModeHybrid]
		p.TaperFallRate = 5
		profiles[logic.ModeHybrid] = p
		m := NewMapper(profiles)

		m.Map(sticks(1000, 1500, 1500), logic.ModeHybrid, t0)
		want := []int{-20, -15, -10, -5, 0, 0}
		for i, w := range want {
			if got := m.Map(sticks(1500, 1500, 1500), logic.ModeHybrid, t0).Turn; got != w {
				t.Errorf("tick %d: got %d, want %d", i, got, w)
			}
		}
	})

	t.Run("stock taper snaps from full", func(t *testing.T) {
		m := NewMapper(DefaultProfiles())
		m.Map(sticks(2000, 1500, 1500), logic.ModeHybrid, t0)
		if got := m.Map(sticks(1500, 1500, 1500), logic.ModeHybrid, t0).Turn; got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})
}

func TestStaleAxes(t *testing.T) {
	m := NewMapper(DefaultProfiles())
	out := m.Map(pwm.FrameOf(map[pwm.ChannelID]int{pwm.A1: 2000}), logic.ModeManual, t0)

	if out.DriveFresh {
		t.Error("drive channel is stale")
	}
	if out.Drive != 0 {
		t.Errorf("stale drive maps as neutral, got %d", out.Drive)
	}
	if !out.TurnFresh || out.Turn != 25 {
		t.Errorf("turn: got %d fresh=%v", out.Turn, out.TurnFresh)
	}
}

func TestHeldReadingsAreNotFresh(t *testing.T) {
	m := NewMapper(DefaultProfiles())
	m.Map(sticks(2000, 2000, 1500), logic.ModeManual, t0)

	held := sticks(2000, 2000, 1500).Held(pwm.A1, 2000).Held(pwm.A2, 2000)
	out := m.Map(held, logic.ModeManual, t0.Add(20*time.Millisecond))
	if out.DriveFresh || out.TurnFresh {
		t.Errorf("no pulse this tick, got drive fresh=%v turn fresh=%v", out.DriveFresh, out.TurnFresh)
	}
	if out.Drive != 25 {
		t.Errorf("held width still maps: got %d", out.Drive)
	}
}

func TestManualDomeFlick(t *testing.T) {
	m := NewMapper(DefaultProfiles())

	// 100 input through expo against 100 gives 78; outside a flick the fine
	// control multiplier doubles it.
	out := m.Map(sticks(1500, 1500, 2000), logic.ModeManual, t0)
	if !out.DomeManual {
		t.Fatal("manual mode drives the dome")
	}
	if out.Dome != 156 {
		t.Errorf("first tick: got %d, want 156", out.Dome)
	}

	out = m.Map(sticks(1500, 1500, 2000), logic.ModeManual, t0.Add(10*time.Millisecond))
	if out.Dome != 78 {
		t.Errorf("during flick: got %d, want 78", out.Dome)
	}

	// Released inside the flick window: hold, capped at the flick speed.
	out = m.Map(sticks(1500, 1500, 1500), logic.ModeManual, t0.Add(30*time.Millisecond))
	if out.Dome != 20 {
		t.Errorf("flick hold: got %d, want 20", out.Dome)
	}

	out = m.Map(sticks(1500, 1500, 1500), logic.ModeManual, t0.Add(60*time.Millisecond))
	if out.Dome != 0 {
		t.Errorf("after flick window: got %d, want 0", out.Dome)
	}
}

func TestDomeLeftGain(t *testing.T) {
	profiles := DefaultProfiles()
	p := profiles[logic.ModeManual]
	p.Dome.LeftGain = 0.5
	profiles[logic.ModeManual] = p
	m := NewMapper(profiles)

	// -100 * 0.5 = -50; 50/127*100 = 39; doubled = -78.
	out := m.Map(sticks(1500, 1500, 1000), logic.ModeManual, t0)
	if out.Dome != -78 {
		t.Errorf("got %d, want -78", out.Dome)
	}
}

func TestHybridHasNoManualDome(t *testing.T) {
	m := NewMapper(DefaultProfiles())
	out := m.Map(sticks(1500, 1500, 2000), logic.ModeHybrid, t0)
	if out.DomeManual || out.Dome != 0 {
		t.Errorf("hybrid dome belongs to automation, got %+v", out)
	}
}

func TestModeChangeResetsState(t *testing.T) {
	profiles := DefaultProfiles()
	p := profiles[logic.ModeHybrid]
	p.TaperFallRate = 5
	profiles[logic.ModeHybrid] = p
	m := NewMapper(profiles)

	m.Map(sticks(2000, 1500, 1500), logic.ModeHybrid, t0)
	m.Map(sticks(1500, 1500, 1500), logic.ModeManual, t0)
	if got := m.Map(sticks(1500, 1500, 1500), logic.ModeHybrid, t0).Turn; got != 0 {
		t.Errorf("taper should not survive a mode change, got %d", got)
	}
}

func TestScaleAndExpo(t *testing.T) {
	if got := Scale(1500, 1000, 2000, -127, 127); got != 0 {
		t.Errorf("Scale centre: got %d", got)
	}
	if got := Scale(2000, 1000, 2000, -127, 127); got != 127 {
		t.Errorf("Scale top: got %d", got)
	}
	if got := Expo(127, 1, 25); got != 25 {
		t.Errorf("Expo full: got %d", got)
	}
	if got := Expo(-127, 2, 40); got != -40 {
		t.Errorf("Expo negative: got %d", got)
	}
	if got := Expo(0, 1.3, 50); got != 0 {
		t.Errorf("Expo zero: got %d", got)
	}
}

func TestProfileValidate(t *testing.T) {
	for mode, p := range DefaultProfiles() {
		if err := p.Validate(); err != nil {
			t.Errorf("default profile %s invalid: %v", mode, err)
		}
	}

	bad := DefaultProfiles()[logic.ModeManual]
	bad.SpeedLimit = 200
	if err := bad.Validate(); err == nil {
		t.Error("expected error for speed_limit 200")
	}

	bad = DefaultProfiles()[logic.ModeHybrid]
	bad.TaperFallRate = 2
	if err := bad.Validate(); err == nil {
		t.Error("expected error for taper_fall_rate 2")
	}
}
