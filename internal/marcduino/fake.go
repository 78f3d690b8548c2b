package marcduino

import "sync"

// FakeLink records sent commands for tests.
type FakeLink struct {
	mu       sync.Mutex
	Commands []string

	// SendError, if set, will be returned by Send.
	SendError error
}

// NewFakeLink creates an empty recorder.
func NewFakeLink() *FakeLink {
	return &FakeLink{}
}

// Send records cmd.
func (f *FakeLink) Send(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// Sent returns a copy of the recorded commands.
func (f *FakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Commands...)
}
