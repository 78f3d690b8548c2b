package combo

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/pwm"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// idle returns every channel centred with all buttons low.
func idle() map[pwm.ChannelID]int {
	m := make(map[pwm.ChannelID]int)
	for ch := pwm.ChannelID(0); ch < pwm.NumChannels; ch++ {
		m[ch] = 1000
	}
	m[pwm.A1], m[pwm.A2], m[pwm.B1], m[pwm.B2] = 1500, 1500, 1500, 1500
	return m
}

func frame(over map[pwm.ChannelID]int) pwm.Frame {
	m := idle()
	for ch, w := range over {
		m[ch] = w
	}
	return pwm.FrameOf(m)
}

// baselined returns a recognizer that has seen one idle frame.
func baselined(t *testing.T, ctx *logic.Context) *Recognizer {
	t.Helper()
	r := NewRecognizer(DefaultConfig())
	if ev := r.Update(frame(nil), ctx, t0); len(ev) != 0 {
		t.Fatalf("baseline frame produced events: %+v", ev)
	}
	return r
}

func TestModeSelect(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	// A4 toggle (base 2) with stick down selects mode 2.
	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1000, pwm.A4: 2000}), ctx, t0.Add(20*time.Millisecond))

	if ctx.Mode != logic.ModeAutomated {
		t.Fatalf("mode: got %s, want AUTOMATED", ctx.Mode)
	}
	if len(ev) != 1 || ev[0].Type != logic.EventModeChanged {
		t.Fatalf("events: got %+v", ev)
	}
	if ev[0].PrevMode != logic.ModeManual || ev[0].Mode != logic.ModeAutomated {
		t.Errorf("mode event: got %+v", ev[0])
	}
	if ctx.Combo != logic.ComboIdle {
		t.Errorf("combo after mode select: got %d", ctx.Combo)
	}
}

func TestModeSelectSameModeClearsCombo(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	// Combo 5: A3 (base 1) with stick up.
	r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, t0.Add(20*time.Millisecond))
	if ctx.Combo != 5 {
		t.Fatalf("combo: got %d, want 5", ctx.Combo)
	}

	// A3 back low with stick down is combo 1, the current mode.
	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1000}), ctx, t0.Add(40*time.Millisecond))
	if len(ev) != 0 {
		t.Errorf("expected no events, got %+v", ev)
	}
	if ctx.Combo != logic.ComboIdle || ctx.Mode != logic.ModeManual {
		t.Errorf("got mode %s combo %d", ctx.Mode, ctx.Combo)
	}
}

func TestMomentaryModeSelect(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	// A6 momentary (base 4) with controller B's stick down is mode 4.
	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.B2: 1000, pwm.A6: 1950}), ctx, t0.Add(20*time.Millisecond))
	if ctx.Mode != logic.ModeCarpet {
		t.Fatalf("mode: got %s, want CARPET", ctx.Mode)
	}
	if len(ev) != 1 {
		t.Errorf("events: got %+v", ev)
	}
}

func TestWhitelist(t *testing.T) {
	tests := []struct {
		name   string
		mode   logic.Mode
		over   map[pwm.ChannelID]int
		combo  logic.ComboID
		accept bool
	}{
		{"manual accepts 5", logic.ModeManual, map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}, 5, true},
		{"manual rejects 9", logic.ModeManual, map[pwm.ChannelID]int{pwm.A1: 1100, pwm.A3: 2000}, 9, false},
		{"carpet rejects 14", logic.ModeCarpet, map[pwm.ChannelID]int{pwm.B1: 1900, pwm.A4: 2000}, 14, false},
		{"hybrid accepts 14", logic.ModeHybrid, map[pwm.ChannelID]int{pwm.A1: 1900, pwm.A4: 2000}, 14, true},
		{"hybrid rejects 21", logic.ModeHybrid, map[pwm.ChannelID]int{pwm.A2: 1800, pwm.B3: 2000}, 21, false},
		{"automated accepts 32", logic.ModeAutomated, map[pwm.ChannelID]int{pwm.A1: 2000, pwm.B6: 2000}, 32, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := logic.NewContext(tt.mode)
			r := baselined(t, ctx)

			ev := r.Update(frame(tt.over), ctx, t0.Add(20*time.Millisecond))
			if len(ev) != 1 {
				t.Fatalf("events: got %+v", ev)
			}
			if ev[0].Combo != tt.combo {
				t.Errorf("combo id: got %d, want %d", ev[0].Combo, tt.combo)
			}
			wantType := logic.EventComboRejected
			wantActive := logic.ComboIdle
			if tt.accept {
				wantType = logic.EventComboActive
				wantActive = tt.combo
			}
			if ev[0].Type != wantType {
				t.Errorf("event type: got %s, want %s", ev[0].Type, wantType)
			}
			if ctx.Combo != wantActive || r.Active() != wantActive {
				t.Errorf("active: ctx %d recognizer %d, want %d", ctx.Combo, r.Active(), wantActive)
			}
		})
	}
}

func TestRejectionClearsActiveCombo(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, t0.Add(20*time.Millisecond))
	if ctx.Combo != 5 {
		t.Fatalf("combo: got %d, want 5", ctx.Combo)
	}

	// A4 with stick left is 10, not allowed in manual.
	r.Update(frame(map[pwm.ChannelID]int{pwm.A1: 1100, pwm.A3: 2000, pwm.A4: 2000}), ctx, t0.Add(40*time.Millisecond))
	if ctx.Combo != logic.ComboIdle {
		t.Errorf("combo after rejection: got %d, want idle", ctx.Combo)
	}
}

func TestComboExpiresAfterTimeout(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	start := t0.Add(20 * time.Millisecond)
	r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, start)

	held := frame(map[pwm.ChannelID]int{pwm.A3: 2000})
	if ev := r.Update(held, ctx, start.Add(time.Second)); len(ev) != 0 {
		t.Errorf("at exactly the timeout: got %+v", ev)
	}
	ev := r.Update(held, ctx, start.Add(time.Second+time.Millisecond))
	if len(ev) != 1 || ev[0].Type != logic.EventComboExpired || ev[0].Combo != 5 {
		t.Fatalf("expected COMBO_EXPIRED for 5, got %+v", ev)
	}
	if ctx.Combo != logic.ComboIdle {
		t.Errorf("combo: got %d, want idle", ctx.Combo)
	}
}

func TestRetriggerRefreshesWatchdog(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	start := t0.Add(20 * time.Millisecond)
	r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, start)

	// Flip A3 back low while still holding up: combo 5 again.
	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800}), ctx, start.Add(800*time.Millisecond))
	if len(ev) != 0 {
		t.Errorf("retrigger of the active combo should be silent, got %+v", ev)
	}

	if r.Update(frame(nil), ctx, start.Add(1500*time.Millisecond)); ctx.Combo != 5 {
		t.Errorf("combo should still be active after refresh, got %d", ctx.Combo)
	}
	if ev := r.Update(frame(nil), ctx, start.Add(1900*time.Millisecond)); len(ev) != 1 {
		t.Errorf("expected expiry one second after the refresh, got %+v", ev)
	}
}

func TestSameComboFiresAgainAfterExpiry(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	start := t0.Add(20 * time.Millisecond)
	r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, start)
	r.Update(frame(map[pwm.ChannelID]int{pwm.A3: 2000}), ctx, start.Add(2*time.Second))

	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800}), ctx, start.Add(3*time.Second))
	if len(ev) != 1 || ev[0].Type != logic.EventComboActive || ev[0].Combo != 5 {
		t.Errorf("expected combo 5 to activate again, got %+v", ev)
	}
}

func TestToggleWithoutStickIsConsumed(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	if ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A3: 2000}), ctx, t0.Add(20*time.Millisecond)); len(ev) != 0 {
		t.Errorf("centred stick: got %+v", ev)
	}
	// Moving the stick afterwards does not replay the edge.
	if ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000}), ctx, t0.Add(40*time.Millisecond)); len(ev) != 0 {
		t.Errorf("edge should not be replayed, got %+v", ev)
	}
}

func TestLastEdgeInScanOrderWins(t *testing.T) {
	ctx := logic.NewContext(logic.ModeAutomated)
	r := baselined(t, ctx)

	// A3 and B3 both flip with stick up: 5 then 21, 21 wins.
	ev := r.Update(frame(map[pwm.ChannelID]int{pwm.A2: 1800, pwm.A3: 2000, pwm.B3: 2000}), ctx, t0.Add(20*time.Millisecond))
	if len(ev) != 1 || ev[0].Combo != 21 {
		t.Errorf("expected combo 21, got %+v", ev)
	}
}

func TestStaleStickNeverClassifies(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	r := baselined(t, ctx)

	m := idle()
	delete(m, pwm.A2)
	delete(m, pwm.B2)
	m[pwm.A3] = 2000
	if ev := r.Update(pwm.FrameOf(m), ctx, t0.Add(20*time.Millisecond)); len(ev) != 0 {
		t.Errorf("stale stick produced %+v", ev)
	}
	if r.Stick() != Center {
		t.Errorf("stick: got %s, want center", r.Stick())
	}
}

func TestHeldAndPrimary(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		over    map[pwm.ChannelID]int
		ctrl    Controller
		has     []Direction
		primary Direction
	}{
		{"centre", nil, ControllerA, nil, Center},
		{"down", map[pwm.ChannelID]int{pwm.A2: 1000}, ControllerA, []Direction{Down}, Down},
		{"up edge", map[pwm.ChannelID]int{pwm.B2: 1700}, ControllerB, []Direction{Up}, Up},
		{"up beyond band", map[pwm.ChannelID]int{pwm.B2: 2150}, ControllerB, nil, Center},
		{"left", map[pwm.ChannelID]int{pwm.A1: 1300}, ControllerA, []Direction{Left}, Left},
		{"diagonal up-right", map[pwm.ChannelID]int{pwm.A1: 1900, pwm.A2: 1900}, ControllerA, []Direction{Up, Right}, Up},
		{"diagonal down-left", map[pwm.ChannelID]int{pwm.B1: 1000, pwm.B2: 1000}, ControllerB, []Direction{Down, Left}, Down},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.Held(frame(tt.over), tt.ctrl)
			for _, d := range tt.has {
				if !got.Has(d) {
					t.Errorf("expected %s held", d)
				}
			}
			if p := got.Primary(); p != tt.primary {
				t.Errorf("primary: got %s, want %s", p, tt.primary)
			}
		})
	}
}

func TestCombinedUnion(t *testing.T) {
	th := DefaultThresholds()
	got := th.Combined(frame(map[pwm.ChannelID]int{pwm.A1: 1900, pwm.B2: 1000}))
	if !got.Has(Right) || !got.Has(Down) {
		t.Errorf("union missing directions: %08b", got)
	}
}

type recordingLink struct {
	sent []string
	err  error
}

func (l *recordingLink) Send(cmd string) error {
	l.sent = append(l.sent, cmd)
	return l.err
}

func TestActionsRun(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	link := &recordingLink{}
	actions := DefaultActions()

	ev, ok, err := actions.Run(5, ctx, link, t0)
	if !ok || err != nil {
		t.Fatalf("Run(5): ok=%v err=%v", ok, err)
	}
	if !ctx.Suppressed {
		t.Error("Awake+ should suppress audio")
	}
	if ev.Type != logic.EventAction || ev.Label != "Awake+" || ev.Combo != 5 {
		t.Errorf("event: got %+v", ev)
	}

	actions.Run(9, ctx, link, t0)
	if !ctx.Suppressed {
		t.Error("Leia Message leaves suppression unchanged")
	}

	actions.Run(6, ctx, link, t0)
	if ctx.Suppressed {
		t.Error("Quiet should re-enable audio")
	}

	want := []string{":SE03\r", ":SE10\r", ":SE00\r"}
	if len(link.sent) != len(want) {
		t.Fatalf("sent: got %q", link.sent)
	}
	for i := range want {
		if link.sent[i] != want[i] {
			t.Errorf("sent[%d]: got %q, want %q", i, link.sent[i], want[i])
		}
	}

	if _, ok, _ := actions.Run(20, ctx, link, t0); ok {
		t.Error("combo 20 has no action")
	}
}

func TestActionsRunSendError(t *testing.T) {
	ctx := logic.NewContext(logic.ModeManual)
	link := &recordingLink{err: errors.New("port closed")}

	_, ok, err := DefaultActions().Run(7, ctx, link, t0)
	if !ok || err == nil {
		t.Fatalf("expected action to run with error, ok=%v err=%v", ok, err)
	}
	if !ctx.Suppressed {
		t.Error("suppression applies even when the send fails")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"inverted down band", func(c *Config) { c.Thresholds.DownMin = 1400 }},
		{"left overlaps right", func(c *Config) { c.Thresholds.LeftMax = 1800 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"whitelist includes mode select", func(c *Config) { c.Whitelist[logic.ModeManual] = Range{Min: 3, Max: 8} }},
		{"whitelist unknown mode", func(c *Config) { c.Whitelist[7] = Range{Min: 5, Max: 8} }},
		{"action on mode select id", func(c *Config) { c.Actions[2] = Action{Label: "x"} }},
		{"unknown audio effect", func(c *Config) { c.Actions[11] = Action{Audio: "louder"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
