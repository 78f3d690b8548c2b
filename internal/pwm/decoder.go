package pwm

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/droid-core/internal/logic"
)

const (
	noRise    = -1
	widthMask = 0xFFFF
)

// channelState is written from the edge goroutine and read from the control
// loop. Every field is a single atomic word so a reader can never see a
// half-written reading.
type channelState struct {
	start   atomic.Int64  // rising-edge stamp in ns, noRise if none pending
	reading atomic.Uint64 // stamp µs << 16 | width µs; 0 = never read
}

// Decoder turns edges into pulse widths.
type Decoder struct {
	src        EdgeSource
	valid      Band
	staleAfter time.Duration

	pins     [NumChannels]int
	modes    [NumChannels][]logic.Mode
	wired    [NumChannels]bool
	attached [NumChannels]bool // control loop only

	channels [NumChannels]channelState
	seen     [NumChannels]uint64 // last reading returned by Snapshot; control loop only
	invalid  atomic.Uint64
}

// NewDecoder creates a decoder for the configured channels. No line is
// attached until Configure is called.
func NewDecoder(src EdgeSource, cfg Config) (*Decoder, error) {
	d := &Decoder{
		src:        src,
		valid:      cfg.Valid,
		staleAfter: cfg.StaleAfter,
	}
	for name, cc := range cfg.Channels {
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, fmt.Errorf("pwm config: %w", err)
		}
		d.pins[ch] = cc.Pin
		d.modes[ch] = cc.Modes
		d.wired[ch] = true
	}
	for i := range d.channels {
		d.channels[i].start.Store(noRise)
	}
	return d, nil
}

// HandleEdge records one edge. Rising edges store the start stamp; falling
// edges publish the width if it lies within the validity band.
func (d *Decoder) HandleEdge(ch ChannelID, rising bool, ts time.Duration) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	c := &d.channels[ch]
	if rising {
		c.start.Store(int64(ts))
		return
	}

	start := c.start.Swap(noRise)
	if start == noRise {
		return
	}
	width := int((ts - time.Duration(start)) / time.Microsecond)
	if width == 0 || !d.valid.Contains(width) {
		d.invalid.Add(1)
		return
	}
	stamp := uint64(ts / time.Microsecond)
	c.reading.Store(stamp<<16 | uint64(width)&widthMask)
}

// Configure attaches the channels enabled in mode and detaches the rest.
func (d *Decoder) Configure(mode logic.Mode) error {
	for ch := ChannelID(0); ch < NumChannels; ch++ {
		if !d.wired[ch] {
			continue
		}
		want := enabledIn(d.modes[ch], mode)
		switch {
		case want && !d.attached[ch]:
			d.channels[ch].start.Store(noRise)
			if err := d.src.Attach(ch, d.pins[ch], d.HandleEdge); err != nil {
				return fmt.Errorf("attach %s (pin %d): %w", ch, d.pins[ch], err)
			}
			d.attached[ch] = true
		case !want && d.attached[ch]:
			if err := d.src.Detach(ch); err != nil {
				return fmt.Errorf("detach %s: %w", ch, err)
			}
			d.attached[ch] = false
			d.channels[ch].reading.Store(0)
			log.Printf("pwm: channel %s skipped in mode %d (line shared)", ch, mode)
		case !want:
			log.Printf("pwm: channel %s skipped in mode %d (line shared)", ch, mode)
		}
	}
	return nil
}

func enabledIn(modes []logic.Mode, mode logic.Mode) bool {
	if len(modes) == 0 {
		return true
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Attached reports whether ch currently has its line attached.
func (d *Decoder) Attached(ch ChannelID) bool {
	return d.attached[ch]
}

// Snapshot reads every channel once. A channel is new when its packed reading
// differs from the one the previous Snapshot returned; it stays fresh until
// staleAfter has passed since its last pulse.
func (d *Decoder) Snapshot() Frame {
	now := d.src.Now()
	var f Frame
	for ch := range d.channels {
		p := d.channels[ch].reading.Load()
		if p == 0 {
			continue
		}
		isNew := p != d.seen[ch]
		d.seen[ch] = p
		stamp := time.Duration(p>>16) * time.Microsecond
		if d.staleAfter > 0 && now-stamp > d.staleAfter {
			continue
		}
		f.widths[ch] = int(p & widthMask)
		f.fresh[ch] = true
		f.newer[ch] = isNew
	}
	return f
}

// Invalid returns the number of pulses rejected since startup.
func (d *Decoder) Invalid() uint64 {
	return d.invalid.Load()
}

// Close releases the edge source.
func (d *Decoder) Close() error {
	return d.src.Close()
}
