//go:build linux

package pwm

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// GPIOSource delivers edges from the Linux GPIO character device. Each attached
// channel is a line requested for both edges; the kernel timestamps every edge
// on CLOCK_MONOTONIC, which is also what Now reads.
type GPIOSource struct {
	chip  *gpiocdev.Chip
	lines [NumChannels]*gpiocdev.Line
}

// NewGPIOSource opens the named GPIO chip.
func NewGPIOSource(chipName string) (*GPIOSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &GPIOSource{chip: chip}, nil
}

// Attach requests pin as an input with both-edge detection.
func (s *GPIOSource) Attach(ch ChannelID, pin int, h EdgeHandler) error {
	if s.lines[ch] != nil {
		return nil
	}
	line, err := s.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(ch, evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
		}))
	if err != nil {
		return fmt.Errorf("request %s pin %d: %w", ch, pin, err)
	}
	s.lines[ch] = line
	return nil
}

// Detach releases the line so another subsystem can claim the pin.
func (s *GPIOSource) Detach(ch ChannelID) error {
	line := s.lines[ch]
	if line == nil {
		return nil
	}
	s.lines[ch] = nil
	if err := line.Close(); err != nil {
		return fmt.Errorf("close %s line: %w", ch, err)
	}
	return nil
}

// Now returns CLOCK_MONOTONIC, the clock of the kernel edge timestamps.
func (s *GPIOSource) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// Close releases every line and the chip.
func (s *GPIOSource) Close() error {
	var errs []error
	for ch := range s.lines {
		if err := s.Detach(ChannelID(ch)); err != nil {
			errs = append(errs, err)
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
