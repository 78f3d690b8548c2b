package audio

import "sync"

// FakePlayer records played tracks for tests.
type FakePlayer struct {
	mu     sync.Mutex
	Tracks []int

	// PlayError, if set, will be returned by Play.
	PlayError error

	Closed bool
}

// NewFakePlayer creates an empty recorder.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

// Play records track after the same range check the real players apply.
func (f *FakePlayer) Play(track int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayError != nil {
		return f.PlayError
	}
	f.Tracks = append(f.Tracks, track)
	return nil
}

// Close marks the player as closed.
func (f *FakePlayer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Played returns a copy of the recorded tracks.
func (f *FakePlayer) Played() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Tracks...)
}
