// Package sabertooth drives Sabertooth and SyRen motor controllers over the
// packetized serial protocol. Each frame is address, command, value and a
// 7-bit checksum.
package sabertooth

import (
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// SyncByte lets the controllers detect the baud rate. It is sent once after
// the port is opened, before any frame.
const SyncByte = 0xAA

const (
	cmdMotor1Forward  = 0
	cmdMotor2Forward  = 4
	cmdDriveForward   = 8
	cmdTurnRight      = 10
	maxPower          = 127
	checksumMask      = 0x7F
	reverseCommandBit = 1 // negative power uses command + 1
)

// Packet builds one frame.
func Packet(address, command, value byte) [4]byte {
	return [4]byte{address, command, value, (address + command + value) & checksumMask}
}

// Controller addresses one controller on a shared serial line.
type Controller struct {
	w       io.Writer
	address byte
}

// NewController returns a controller at address writing to w.
func NewController(w io.Writer, address byte) *Controller {
	return &Controller{w: w, address: address}
}

func (c *Controller) throttle(command byte, power int) error {
	if power > maxPower {
		power = maxPower
	}
	if power < -maxPower {
		power = -maxPower
	}
	if power < 0 {
		command += reverseCommandBit
		power = -power
	}
	p := Packet(c.address, command, byte(power))
	if _, err := c.w.Write(p[:]); err != nil {
		return fmt.Errorf("sabertooth %d: %w", c.address, err)
	}
	return nil
}

// Drive sets mixed-mode forward (positive) or backward power.
func (c *Controller) Drive(power int) error {
	return c.throttle(cmdDriveForward, power)
}

// Turn sets mixed-mode right (positive) or left power.
func (c *Controller) Turn(power int) error {
	return c.throttle(cmdTurnRight, power)
}

// Motor sets independent power for motor 1 or 2.
func (c *Controller) Motor(motor, power int) error {
	switch motor {
	case 1:
		return c.throttle(cmdMotor1Forward, power)
	case 2:
		return c.throttle(cmdMotor2Forward, power)
	default:
		return fmt.Errorf("sabertooth %d: no motor %d", c.address, motor)
	}
}

// Config configures the shared drive and dome serial line.
type Config struct {
	Port         string `yaml:"port"` // empty discards commands
	Baud         int    `yaml:"baud"`
	DriveAddress int    `yaml:"drive_address"`
	DomeAddress  int    `yaml:"dome_address"`
	DomeMin      int    `yaml:"dome_min"`
	DomeMax      int    `yaml:"dome_max"`
}

// DefaultConfig returns the stock wiring: a Sabertooth at 128 for the legs
// and a SyRen at 129 for the dome, both at 9600 baud.
func DefaultConfig() Config {
	return Config{
		Port:         "/dev/serial0",
		Baud:         9600,
		DriveAddress: 128,
		DomeAddress:  129,
		DomeMin:      -100,
		DomeMax:      100,
	}
}

// Validate checks addresses and the dome range.
func (c Config) Validate() error {
	for _, a := range []int{c.DriveAddress, c.DomeAddress} {
		if a < 128 || a > 135 {
			return fmt.Errorf("actuator: address %d outside 128..135", a)
		}
	}
	if c.DriveAddress == c.DomeAddress {
		return fmt.Errorf("actuator: drive and dome share address %d", c.DriveAddress)
	}
	if c.DomeMin > c.DomeMax || c.DomeMin < -maxPower || c.DomeMax > maxPower {
		return fmt.Errorf("actuator: dome range %d..%d invalid", c.DomeMin, c.DomeMax)
	}
	if c.Port != "" && c.Baud <= 0 {
		return fmt.Errorf("actuator: baud must be positive")
	}
	return nil
}

// Sink sends the arbitrated commands to both controllers. Drive and turn are
// refreshed every call; the dome is written only when its value changes.
type Sink struct {
	w       io.Writer
	closer  io.Closer
	drive   *Controller
	dome    *Controller
	domeMin int
	domeMax int

	lastDome int
	domeSent bool
}

// NewSink writes the sync byte to w and returns a sink using it.
func NewSink(w io.Writer, cfg Config) (*Sink, error) {
	if _, err := w.Write([]byte{SyncByte}); err != nil {
		return nil, fmt.Errorf("sabertooth sync: %w", err)
	}
	s := &Sink{
		w:       w,
		drive:   NewController(w, byte(cfg.DriveAddress)),
		dome:    NewController(w, byte(cfg.DomeAddress)),
		domeMin: cfg.DomeMin,
		domeMax: cfg.DomeMax,
	}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// Open opens the serial port named in cfg. Without a port the sink discards
// every command.
func Open(cfg Config) (*Sink, error) {
	if cfg.Port == "" {
		log.Printf("sabertooth: no port, motor commands discarded")
		return NewSink(io.Discard, cfg)
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open actuator port %s: %w", cfg.Port, err)
	}
	s, err := NewSink(port, cfg)
	if err != nil {
		port.Close()
		return nil, err
	}
	log.Printf("sabertooth: opened %s at %d baud", cfg.Port, cfg.Baud)
	return s, nil
}

// Write sends one tick's commands.
func (s *Sink) Write(drive, turn, dome int) error {
	if err := s.drive.Drive(drive); err != nil {
		return err
	}
	if err := s.drive.Turn(turn); err != nil {
		return err
	}

	if dome < s.domeMin {
		dome = s.domeMin
	}
	if dome > s.domeMax {
		dome = s.domeMax
	}
	if s.domeSent && dome == s.lastDome {
		return nil
	}
	if err := s.dome.Motor(1, dome); err != nil {
		return err
	}
	s.lastDome = dome
	s.domeSent = true
	return nil
}

// Stop zeroes every motor.
func (s *Sink) Stop() error {
	s.domeSent = false
	return s.Write(0, 0, 0)
}

// Close stops the motors and closes the port.
func (s *Sink) Close() error {
	err := s.Stop()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
