package pwm

import (
	"sync"
	"time"
)

// FakeSource is a test double that delivers scripted edges to attached channels.
type FakeSource struct {
	mu sync.Mutex

	// Clock is the value returned by Now.
	Clock time.Duration

	// Pins records the pin each attached channel was requested on.
	Pins map[ChannelID]int

	// Attaches and Detaches record every call in order.
	Attaches []ChannelID
	Detaches []ChannelID

	// AttachError, if set, will be returned by Attach.
	AttachError error

	// Closed tracks if Close was called.
	Closed bool

	handlers map[ChannelID]EdgeHandler
}

// NewFakeSource creates a FakeSource with the clock at 1s.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Clock:    time.Second,
		Pins:     make(map[ChannelID]int),
		handlers: make(map[ChannelID]EdgeHandler),
	}
}

// Attach records the handler for ch.
func (f *FakeSource) Attach(ch ChannelID, pin int, h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AttachError != nil {
		return f.AttachError
	}
	f.handlers[ch] = h
	f.Pins[ch] = pin
	f.Attaches = append(f.Attaches, ch)
	return nil
}

// Detach forgets the handler for ch.
func (f *FakeSource) Detach(ch ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, ch)
	delete(f.Pins, ch)
	f.Detaches = append(f.Detaches, ch)
	return nil
}

// IsAttached reports whether ch has a handler.
func (f *FakeSource) IsAttached(ch ChannelID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[ch]
	return ok
}

// Now returns the scripted clock.
func (f *FakeSource) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Clock
}

// Advance moves the clock forward.
func (f *FakeSource) Advance(d time.Duration) {
	f.mu.Lock()
	f.Clock += d
	f.mu.Unlock()
}

// Edge delivers one edge at ts if ch is attached. It reports whether the edge
// was delivered.
func (f *FakeSource) Edge(ch ChannelID, rising bool, ts time.Duration) bool {
	f.mu.Lock()
	h, ok := f.handlers[ch]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(ch, rising, ts)
	return true
}

// Pulse delivers a rising edge at the current clock and a falling edge width
// later, advancing the clock to the falling edge.
func (f *FakeSource) Pulse(ch ChannelID, width time.Duration) bool {
	start := f.Now()
	if !f.Edge(ch, true, start) {
		return false
	}
	f.Advance(width)
	f.Edge(ch, false, start+width)
	return true
}

// PulseMicros is Pulse with the width in microseconds.
func (f *FakeSource) PulseMicros(ch ChannelID, us int) bool {
	return f.Pulse(ch, time.Duration(us)*time.Microsecond)
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
