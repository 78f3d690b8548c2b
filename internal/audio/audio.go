// Package audio triggers sound tracks on the droid's sound board. Tracks are
// numbered 1..255; each device has its own wire encoding.
package audio

import (
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// Track limits accepted by every device.
const (
	MinTrack = 1
	MaxTrack = 255
)

// Device names.
const (
	DeviceMP3Trigger = "mp3trigger"
	DeviceYX5300     = "yx5300"
	DeviceLocal      = "local"
)

// Player plays one track without blocking the caller.
type Player interface {
	Play(track int) error
	Close() error
}

// Config selects and configures the audio device.
type Config struct {
	Device string `yaml:"device"`
	Port   string `yaml:"port"` // serial devices; empty logs triggers only
	Baud   int    `yaml:"baud"` // 0 uses the device default
	Dir    string `yaml:"dir"`  // local device: directory of NNN.wav files
}

// DefaultConfig returns an MP3 Trigger with no port configured.
func DefaultConfig() Config {
	return Config{Device: DeviceMP3Trigger}
}

// Validate checks the device name and its required settings.
func (c Config) Validate() error {
	switch c.Device {
	case DeviceMP3Trigger, DeviceYX5300:
	case DeviceLocal:
		if c.Dir == "" {
			return fmt.Errorf("audio: local device needs dir")
		}
	default:
		return fmt.Errorf("audio: unknown device %q", c.Device)
	}
	if c.Baud < 0 {
		return fmt.Errorf("audio: baud must not be negative")
	}
	return nil
}

func (c Config) baud() int {
	if c.Baud > 0 {
		return c.Baud
	}
	if c.Device == DeviceMP3Trigger {
		return 38400
	}
	return 9600
}

// Open returns the player described by cfg. A serial device without a port
// returns a player that only logs.
func Open(cfg Config) (Player, error) {
	if cfg.Device == DeviceLocal {
		return NewLocal(cfg.Dir), nil
	}
	if cfg.Port == "" {
		log.Printf("audio: no port for %s, logging triggers only", cfg.Device)
		return logPlayer{}, nil
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.baud()})
	if err != nil {
		return nil, fmt.Errorf("open audio port %s: %w", cfg.Port, err)
	}
	log.Printf("audio: %s on %s at %d baud", cfg.Device, cfg.Port, cfg.baud())
	if cfg.Device == DeviceYX5300 {
		return NewYX5300(port), nil
	}
	return NewMP3Trigger(port), nil
}

func checkTrack(track int) error {
	if track < MinTrack || track > MaxTrack {
		return fmt.Errorf("audio: track %d outside %d..%d", track, MinTrack, MaxTrack)
	}
	return nil
}

// serialPlayer writes a fixed frame per track.
type serialPlayer struct {
	w      io.Writer
	encode func(track byte) []byte
}

func (p *serialPlayer) Play(track int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	if _, err := p.w.Write(p.encode(byte(track))); err != nil {
		return fmt.Errorf("audio: play %d: %w", track, err)
	}
	return nil
}

func (p *serialPlayer) Close() error {
	if c, ok := p.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewMP3Trigger returns a SparkFun MP3 Trigger player: 't' then the track.
func NewMP3Trigger(w io.Writer) Player {
	return &serialPlayer{w: w, encode: func(n byte) []byte { return []byte{'t', n} }}
}

// NewYX5300 returns a YX5300 player using the play-index command.
func NewYX5300(w io.Writer) Player {
	return &serialPlayer{w: w, encode: func(n byte) []byte {
		return []byte{0x7E, 0xFF, 0x06, 0x03, 0x00, 0x00, n, 0xEF}
	}}
}

type logPlayer struct{}

func (logPlayer) Play(track int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	log.Printf("audio: track %d (no device)", track)
	return nil
}

func (logPlayer) Close() error { return nil }
