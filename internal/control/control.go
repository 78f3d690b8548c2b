// Package control runs one control tick: it reads the radio once, recognizes
// combos, maps and arbitrates the drive, runs automation and the soundboard,
// and hands the results to the sinks, telemetry and the status tracker.
package control

import (
	"log"
	"time"

	"github.com/sweeney/droid-core/internal/audio"
	"github.com/sweeney/droid-core/internal/automation"
	"github.com/sweeney/droid-core/internal/combo"
	"github.com/sweeney/droid-core/internal/config"
	"github.com/sweeney/droid-core/internal/drive"
	"github.com/sweeney/droid-core/internal/logic"
	"github.com/sweeney/droid-core/internal/mqtt"
	"github.com/sweeney/droid-core/internal/pwm"
	"github.com/sweeney/droid-core/internal/safety"
	"github.com/sweeney/droid-core/internal/status"
)

// Radio is the pulse decoder as the control loop uses it.
type Radio interface {
	Snapshot() pwm.Frame
	Configure(mode logic.Mode) error
	Invalid() uint64
}

// Actuator drives the leg and dome motors.
type Actuator interface {
	Write(drive, turn, dome int) error
	Stop() error
}

// Indicator shows the mode.
type Indicator interface {
	Update(mode logic.Mode, now time.Time) error
}

// Deps are the I/O boundaries of the controller.
type Deps struct {
	Radio     Radio
	Actuator  Actuator
	Player    audio.Player
	Link      combo.Commander
	Indicator Indicator
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Rand      automation.Rand
}

// Controller owns the shared context and every per-tick stage.
type Controller struct {
	d   Deps
	ctx *logic.Context

	recognizer *combo.Recognizer
	actions    combo.Actions
	mapper     *drive.Mapper
	arbiter    *safety.Arbiter
	scheduler  *automation.Scheduler
	soundboard *audio.Soundboard

	counts        logic.EventCounts
	lastHeartbeat time.Time

	actuatorErr  sinkState
	indicatorErr sinkState
}

// New builds a controller from a validated config.
func New(cfg config.Config, d Deps) *Controller {
	return &Controller{
		d:            d,
		ctx:          logic.NewContext(cfg.StartMode),
		recognizer:   combo.NewRecognizer(cfg.Combo),
		actions:      cfg.Combo.Actions,
		mapper:       drive.NewMapper(cfg.Drive),
		arbiter:      safety.NewArbiter(cfg.Safety, cfg.Combo.Thresholds),
		scheduler:    automation.NewScheduler(cfg.Automation, d.Rand),
		soundboard:   audio.NewSoundboard(cfg.Soundboard, d.Rand),
		actuatorErr:  sinkState{name: "actuator"},
		indicatorErr: sinkState{name: "indicator"},
	}
}

// Start attaches the radio for the start mode and arms automation.
func (c *Controller) Start(now time.Time) error {
	c.lastHeartbeat = now
	c.scheduler.Reset(c.ctx.Mode, now)
	log.Printf("control: start in mode %s", c.ctx.Mode)
	return c.d.Radio.Configure(c.ctx.Mode)
}

// Context returns a copy of the shared context.
func (c *Controller) Context() logic.Context {
	return *c.ctx
}

// Counts returns the event totals since startup.
func (c *Controller) Counts() logic.EventCounts {
	return c.counts
}

// Tick runs one control cycle and returns the events it produced. Sink
// errors are logged and never stop the tick.
func (c *Controller) Tick(now time.Time) []logic.Event {
	frame := c.d.Radio.Snapshot()

	prev := c.ctx.Mode
	events := c.recognizer.Update(frame, c.ctx, now)
	if c.ctx.Mode != prev {
		c.changeMode(now)
	}

	for _, ev := range events {
		if ev.Type != logic.EventComboActive {
			continue
		}
		act, ok, err := c.actions.Run(ev.Combo, c.ctx, c.d.Link, now)
		if err != nil {
			log.Printf("control: %v", err)
		}
		if ok {
			events = append(events, act)
		}
	}

	out := c.mapper.Map(frame, c.ctx.Mode, now)
	dec := c.arbiter.Evaluate(frame, c.ctx.Mode, out, now)
	events = append(events, dec.Events...)

	auto := c.scheduler.Tick(now, !dec.Kill, c.ctx.Suppressed)
	events = append(events, auto.Events...)
	if auto.Track > 0 {
		c.play(auto.Track)
	}

	for _, ev := range c.soundboard.Update(frame, c.ctx, dec.Kill, now) {
		c.play(ev.Track)
		events = append(events, ev)
	}

	dome := c.arbiter.Dome(out, auto, dec.Kill)
	c.actuatorErr.report(c.d.Actuator.Write(dec.Drive, dec.Turn, dome))
	c.indicatorErr.report(c.d.Indicator.Update(c.ctx.Mode, now))

	for _, ev := range events {
		if err := c.d.Publisher.Publish(ev); err != nil {
			log.Printf("control: publish %s: %v", ev.Type, err)
		}
	}
	c.counts.Count(events)

	seq := c.scheduler.Snapshot()
	c.d.Tracker.Update(status.Control{
		Mode:          c.ctx.Mode,
		Combo:         c.ctx.Combo,
		Suppressed:    c.ctx.Suppressed,
		Kill:          dec.Kill,
		Drive:         dec.Drive,
		Turn:          dec.Turn,
		Dome:          dome,
		Phase:         phaseName(c.scheduler.Active(), seq.Phase),
		DomeOffset:    seq.Offset,
		Channels:      channels(frame),
		InvalidPulses: c.d.Radio.Invalid(),
		Counts:        c.counts,
	})
	c.d.Tracker.AddEvents(events)
	return events
}

// changeMode reconfigures the stages that depend on the mode. The mapper and
// arbiter notice the change themselves on their next call.
func (c *Controller) changeMode(now time.Time) {
	if err := c.d.Radio.Configure(c.ctx.Mode); err != nil {
		log.Printf("control: reconfigure radio for %s: %v", c.ctx.Mode, err)
	}
	c.scheduler.Reset(c.ctx.Mode, now)
}

func (c *Controller) play(track int) {
	if err := c.d.Player.Play(track); err != nil {
		log.Printf("control: play track %d: %v", track, err)
	}
}

// CheckHeartbeat reports whether interval has elapsed since the last
// heartbeat (or Start), and if so restarts the interval. A zero interval
// disables heartbeats.
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) bool {
	if interval <= 0 || now.Sub(c.lastHeartbeat) < interval {
		return false
	}
	c.lastHeartbeat = now
	return true
}

// Stop zeroes every motor.
func (c *Controller) Stop() error {
	return c.d.Actuator.Stop()
}

func phaseName(active bool, p automation.Phase) string {
	if !active {
		return ""
	}
	return p.String()
}

func channels(f pwm.Frame) []status.Channel {
	out := make([]status.Channel, 0, pwm.NumChannels)
	for ch := pwm.ChannelID(0); ch < pwm.NumChannels; ch++ {
		w, ok := f.Reading(ch)
		out = append(out, status.Channel{Name: ch.String(), Width: w, Fresh: ok})
	}
	return out
}

// sinkState logs a sink's errors on transitions only.
type sinkState struct {
	name    string
	failing bool
}

func (s *sinkState) report(err error) {
	switch {
	case err != nil && !s.failing:
		log.Printf("control: %s: %v", s.name, err)
	case err == nil && s.failing:
		log.Printf("control: %s recovered", s.name)
	}
	s.failing = err != nil
}
