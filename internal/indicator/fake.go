package indicator

import "sync"

// FakeOutput records every write for tests.
type FakeOutput struct {
	mu     sync.Mutex
	Writes []bool

	// SetError, if set, will be returned by Set.
	SetError error

	Closed bool
}

// NewFakeOutput creates an empty recorder.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Blinks returns the number of off-to-on transitions written.
func (f *FakeOutput) Blinks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, on := range f.Writes {
		if on {
			n++
		}
	}
	return n
}
