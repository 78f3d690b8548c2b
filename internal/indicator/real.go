//go:build linux

package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOOutput drives one line of a GPIO chip.
type GPIOOutput struct {
	line *gpiocdev.Line
}

// NewGPIOOutput requests pin on chip as an output, initially low.
func NewGPIOOutput(chip string, pin int) (*GPIOOutput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request indicator pin %d: %w", pin, err)
	}
	return &GPIOOutput{line: line}, nil
}

// Set drives the line high when on.
func (o *GPIOOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return o.line.SetValue(v)
}

// Close releases the line.
func (o *GPIOOutput) Close() error {
	return o.line.Close()
}
