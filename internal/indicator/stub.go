//go:build !linux

package indicator

import "errors"

// GPIOOutput is not available on non-Linux platforms.
type GPIOOutput struct{}

// NewGPIOOutput returns an error on non-Linux platforms.
func NewGPIOOutput(chip string, pin int) (*GPIOOutput, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (o *GPIOOutput) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *GPIOOutput) Close() error {
	return nil
}
