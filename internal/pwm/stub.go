//go:build !linux

package pwm

import (
	"errors"
	"time"
)

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(chipName string) (*GPIOSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Attach is not implemented on non-Linux platforms.
func (s *GPIOSource) Attach(ch ChannelID, pin int, h EdgeHandler) error {
	return errors.New("gpio: not supported")
}

// Detach is not implemented on non-Linux platforms.
func (s *GPIOSource) Detach(ch ChannelID) error {
	return nil
}

// Now is not implemented on non-Linux platforms.
func (s *GPIOSource) Now() time.Duration {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSource) Close() error {
	return nil
}
