// Package automation runs the randomized dome motion and ambient audio
// cadences. The scheduler is tick-driven: every wait is a comparison against
// a recorded deadline, and nothing blocks.
package automation

import (
	"log"
	"math"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

// Rand is the random source. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Phase is the dome sequence state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseMoving
	PhaseAwaitingNext
)

func (p Phase) String() string {
	switch p {
	case PhaseMoving:
		return "MOVING"
	case PhaseAwaitingNext:
		return "AWAITING_NEXT"
	default:
		return "IDLE"
	}
}

// Sequence is a snapshot of the dome sequence and audio cadence.
type Sequence struct {
	Phase     Phase
	Offset    float64 // signed degrees from centre
	Speed     int     // locked sequence speed, 0 when unlocked
	Swings    int     // free moves since the last correction
	Direction int     // of the current or last move
	MoveEnd   time.Time
	NextMove  time.Time
	NextAudio time.Time
}

// Result is what one tick asks of the sinks.
type Result struct {
	Active bool // the mode is automated; Dome is authoritative
	Dome   int  // signed dome command
	Track  int  // audio track to play, 0 for none
	Events []logic.Event
}

// Scheduler produces dome moves and audio triggers for the automated modes.
type Scheduler struct {
	cfg Config
	rng Rand

	mode    logic.Mode
	profile Profile
	active  bool
	entered time.Time

	seq       Sequence
	moveSpeed int
}

// NewScheduler creates a scheduler. Call Reset before the first Tick.
func NewScheduler(cfg Config, rng Rand) *Scheduler {
	return &Scheduler{cfg: cfg, rng: rng}
}

// Reset reinitializes all state for mode, entered at now. It reports whether
// a move in flight was abandoned; the next Tick no longer commands it.
func (s *Scheduler) Reset(mode logic.Mode, now time.Time) bool {
	interrupted := s.active && s.seq.Phase == PhaseMoving
	if interrupted {
		log.Printf("automation: move interrupted by switch to mode %s", mode)
	}
	s.mode = mode
	s.profile, s.active = s.cfg.Profiles[mode]
	s.entered = now
	s.seq = Sequence{NextMove: now, NextAudio: now}
	s.moveSpeed = 0
	return interrupted
}

// Snapshot returns the current sequence state.
func (s *Scheduler) Snapshot() Sequence {
	return s.seq
}

// Active reports whether the current mode is automated.
func (s *Scheduler) Active() bool {
	return s.active
}

// Tick advances both cadences. A move in flight always completes at its end
// time. New moves and audio triggers start only when allowNew is set and the
// settle window has passed. Suppressed audio is skipped but still rescheduled.
func (s *Scheduler) Tick(now time.Time, allowNew, suppressed bool) Result {
	if !s.active {
		return Result{}
	}
	res := Result{Active: true}

	if s.seq.Phase == PhaseMoving {
		if now.Before(s.seq.MoveEnd) {
			res.Dome = s.seq.Direction * s.moveSpeed
		} else {
			s.seq.Phase = PhaseAwaitingNext
			res.Events = append(res.Events, logic.Event{
				Timestamp: now,
				Type:      logic.EventDomeComplete,
				Mode:      s.mode,
				Dome:      &logic.DomeMove{Direction: s.seq.Direction, Offset: s.seq.Offset},
			})
		}
	}

	if !allowNew || now.Sub(s.entered) < s.profile.Settle {
		return res
	}

	if s.seq.Phase != PhaseMoving && !now.Before(s.seq.NextMove) {
		ev := s.startMove(now)
		res.Dome = s.seq.Direction * s.moveSpeed
		res.Events = append(res.Events, ev)
	}

	if !now.Before(s.seq.NextAudio) {
		if ev, track := s.triggerAudio(now, suppressed); ev.Type != "" {
			res.Track = track
			res.Events = append(res.Events, ev)
		}
	}
	return res
}

func (s *Scheduler) startMove(now time.Time) logic.Event {
	p := s.profile
	s.seq.NextMove = now.Add(s.between(p.MoveDelayMin, p.MoveDelayMax))

	if s.seq.Speed == 0 {
		s.seq.Speed = s.intBetween(p.SpeedMin, p.SpeedMax)
	}
	speed := s.seq.Speed

	var (
		dir        int
		angle      float64
		correction bool
	)
	if s.seq.Swings >= p.SwingsBeforeCorrection || math.Abs(s.seq.Offset) > s.cfg.Epsilon {
		correction = true
		dir = 1
		if s.seq.Offset >= 0 {
			dir = -1
		}
		angle = math.Abs(s.seq.Offset)
		s.seq.Swings = 0
		s.seq.Speed = 0
	} else {
		dir = 1
		if s.rng.Intn(2) == 0 {
			dir = -1
		}
		angle = float64(s.intBetween(p.AngleMin, p.AngleMax))
		s.seq.Swings++
	}

	duration, actual := s.cfg.MoveDuration(angle, speed, p.BaseSpeed, dir, correction)
	s.seq.Offset += float64(dir) * actual
	s.seq.Direction = dir
	s.seq.MoveEnd = now.Add(duration)
	s.seq.Phase = PhaseMoving
	s.moveSpeed = speed

	kind := "free"
	if correction {
		kind = "correction"
	}
	log.Printf("automation: %s move dir=%d angle=%.1f speed=%d duration=%v offset=%.2f",
		kind, dir, angle, speed, duration, s.seq.Offset)

	return logic.Event{
		Timestamp: now,
		Type:      logic.EventDomeMove,
		Mode:      s.mode,
		Dome: &logic.DomeMove{
			Direction:  dir,
			Speed:      speed,
			Angle:      angle,
			Actual:     actual,
			Offset:     s.seq.Offset,
			Duration:   duration,
			Correction: correction,
		},
	}
}

// MoveDuration returns how long the dome runs to cover angle degrees at speed,
// and the angle that duration actually covers. Correction moves skip the
// direction factor.
func (c Config) MoveDuration(angle float64, speed, baseSpeed, dir int, correction bool) (time.Duration, float64) {
	rate := c.BaseMsPerDegree * math.Pow(float64(baseSpeed)/float64(speed), c.CurveFactor)
	if !correction {
		if dir > 0 {
			rate *= c.RightFactor
		} else {
			rate *= c.LeftFactor
		}
	}
	ms := math.Round(angle * rate)
	return time.Duration(ms) * time.Millisecond, ms / rate
}

func (s *Scheduler) triggerAudio(now time.Time, suppressed bool) (logic.Event, int) {
	p := s.profile
	s.seq.NextAudio = now.Add(s.between(p.AudioIntervalMin, p.AudioIntervalMax))

	if suppressed {
		return logic.Event{Timestamp: now, Type: logic.EventAudioSuppressed, Mode: s.mode}, 0
	}

	cat := p.Categories[s.rng.Intn(len(p.Categories))]
	track := s.intBetween(cat.Start, cat.End)
	log.Printf("automation: audio %s track=%d", cat.Label, track)
	return logic.Event{
		Timestamp: now,
		Type:      logic.EventAudioTrigger,
		Mode:      s.mode,
		Label:     cat.Label,
		Track:     track,
	}, track
}

// intBetween returns a uniform integer in [lo,hi].
func (s *Scheduler) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// between returns a uniform duration in [lo,hi] at millisecond resolution.
func (s *Scheduler) between(lo, hi time.Duration) time.Duration {
	ms := s.intBetween(int(lo/time.Millisecond), int(hi/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}
