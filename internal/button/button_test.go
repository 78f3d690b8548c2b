package button

import (
	"testing"
	"time"
)

func TestToggleBaselineThenEdges(t *testing.T) {
	tg := NewToggle(1700, 1300)

	steps := []struct {
		width int
		ok    bool
		want  bool
	}{
		{1500, true, false}, // undetermined, no baseline yet
		{1000, true, false}, // baseline low
		{1000, true, false},
		{1500, true, false}, // hold
		{1800, true, true},  // low -> high
		{1800, true, false},
		{0, false, false}, // stale ignored
		{1200, true, true}, // high -> low
		{1700, true, false}, // exactly at threshold holds
		{1300, true, false},
	}

	for i, s := range steps {
		if got := tg.Update(s.width, s.ok); got != s.want {
			t.Errorf("step %d (width %d): got %v, want %v", i, s.width, got, s.want)
		}
	}
}

func TestToggleReset(t *testing.T) {
	tg := NewToggle(1700, 1300)
	tg.Update(1000, true)
	tg.Reset()

	if tg.Update(2000, true) {
		t.Error("first reading after Reset should only baseline")
	}
	if !tg.Update(1000, true) {
		t.Error("expected edge after new baseline")
	}
}

func TestMomentaryFiresOncePerPress(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMomentary(1900, 1300, 0)

	if m.Update(now, 1800, true, 0) {
		t.Error("below fire threshold should not fire")
	}
	if !m.Update(now, 1950, true, 0) {
		t.Error("expected fire at 1950")
	}
	if m.Update(now.Add(time.Second), 1950, true, 0) {
		t.Error("held button must not fire again without auto-reset")
	}
	if m.Update(now.Add(time.Second), 1950, true, -1) {
		t.Error("negative slot never fires")
	}

	m.Update(now.Add(2*time.Second), 1000, true, 0) // release
	if !m.Update(now.Add(3*time.Second), 2000, true, 0) {
		t.Error("expected fire after release")
	}
}

func TestMomentarySlotsAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMomentary(1900, 1300, 0)

	if !m.Update(now, 2000, true, 1) {
		t.Fatal("slot 1 should fire")
	}
	if !m.Update(now, 2000, true, 2) {
		t.Error("slot 2 has its own latch and should fire")
	}
	if m.Update(now, 2000, true, 1) {
		t.Error("slot 1 is latched")
	}
}

func TestMomentaryAutoReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMomentary(1900, 1300, 50*time.Millisecond)

	if !m.Update(now, 2000, true, 0) {
		t.Fatal("expected first fire")
	}
	if m.Update(now.Add(40*time.Millisecond), 2000, true, 0) {
		t.Error("still inside the window")
	}
	if !m.Update(now.Add(60*time.Millisecond), 2000, true, 0) {
		t.Error("expected re-trigger after the window")
	}
}

func TestMomentaryIgnoresStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMomentary(1900, 1300, 0)

	m.Update(now, 2000, true, 0)
	// A stale reading does not count as a release.
	m.Update(now, 0, false, 0)
	if m.Update(now, 2000, true, 0) {
		t.Error("stale reading must not re-arm the latch")
	}
}
