package sabertooth

import "sync"

// Command is one recorded Write call.
type Command struct {
	Drive, Turn, Dome int
}

// FakeActuator records commands for tests.
type FakeActuator struct {
	mu       sync.Mutex
	Commands []Command

	// WriteError, if set, will be returned by Write.
	WriteError error

	Stopped bool
	Closed  bool
}

// NewFakeActuator creates an empty recorder.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Write records the command.
func (f *FakeActuator) Write(drive, turn, dome int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, Command{Drive: drive, Turn: turn, Dome: dome})
	return f.WriteError
}

// Stop records a stop.
func (f *FakeActuator) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = true
	return nil
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Last returns the most recent command.
func (f *FakeActuator) Last() (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return Command{}, false
	}
	return f.Commands[len(f.Commands)-1], true
}
