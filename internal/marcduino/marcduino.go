// Package marcduino sends command strings to the MarcDuino dome-panel and
// light controller.
package marcduino

import (
	"fmt"
	"io"
	"log"
	"strconv"

	"go.bug.st/serial"
)

// Config configures the MarcDuino serial link.
type Config struct {
	Port string `yaml:"port"` // empty logs commands only
	Baud int    `yaml:"baud"`
}

// DefaultConfig returns an unconfigured link at 9600 baud.
func DefaultConfig() Config {
	return Config{Baud: 9600}
}

// Validate checks the baud rate.
func (c Config) Validate() error {
	if c.Port != "" && c.Baud <= 0 {
		return fmt.Errorf("marcduino: baud must be positive")
	}
	return nil
}

// Link writes raw commands such as ":SE03\r".
type Link struct {
	w io.Writer
}

// NewLink returns a link writing to w. A nil w logs commands only.
func NewLink(w io.Writer) *Link {
	return &Link{w: w}
}

// Open opens the port in cfg, or returns a logging link when no port is set.
func Open(cfg Config) (*Link, error) {
	if cfg.Port == "" {
		log.Printf("marcduino: no port, logging commands only")
		return NewLink(nil), nil
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open marcduino port %s: %w", cfg.Port, err)
	}
	log.Printf("marcduino: opened %s at %d baud", cfg.Port, cfg.Baud)
	return NewLink(port), nil
}

// Send writes cmd unchanged.
func (l *Link) Send(cmd string) error {
	if cmd == "" {
		return fmt.Errorf("marcduino: empty command")
	}
	if l.w == nil {
		log.Printf("marcduino: %s (no port)", strconv.Quote(cmd))
		return nil
	}
	if _, err := io.WriteString(l.w, cmd); err != nil {
		return fmt.Errorf("marcduino: send %s: %w", strconv.Quote(cmd), err)
	}
	return nil
}

// Close closes the underlying port, if any.
func (l *Link) Close() error {
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
