// Package config describes a servo controller: channel count, tick rate,
// PCA9685 chain and per-servo pulse calibration.
package config

import (
	"errors"

	"servoseq/core"
	"servoseq/sequencer"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the device configuration
type Config struct {
	ActiveChannels int            `yaml:"active_channels"`
	TickIntervalMS uint32         `yaml:"tick_interval_ms"`
	PWMFrequencyHz uint32         `yaml:"pwm_frequency_hz"`
	I2CBus         string         `yaml:"i2c_bus"` // empty selects the first bus
	Drivers        []DriverConfig `yaml:"drivers"`
	PulseMin       uint16         `yaml:"pulse_min"`
	PulseMax       uint16         `yaml:"pulse_max"`
	Servos         []ServoConfig  `yaml:"servos"`
	Serial         SerialConfig   `yaml:"serial"`
	HTTP           HTTPConfig     `yaml:"http"`
	Debug          bool           `yaml:"debug"`
}

// DriverConfig is one PCA9685 chip. Chip i serves channels 16*i to 16*i+15.
type DriverConfig struct {
	Address uint8 `yaml:"address"`
}

// ServoConfig overrides the pulse endpoints of one channel
type ServoConfig struct {
	Channel  int    `yaml:"channel"`
	Name     string `yaml:"name"`
	PulseMin uint16 `yaml:"pulse_min"`
	PulseMax uint16 `yaml:"pulse_max"`
}

// SerialConfig is the command link on a host
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// HTTPConfig enables the status API when Listen is set
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

const (
	DefaultActiveChannels = 16
	DefaultTickIntervalMS = 10
	DefaultPWMFrequencyHz = 50
	DefaultSerialDevice   = "/dev/ttyACM0"
	DefaultBaud           = 115200
)

// Default returns the built-in configuration: one chip at 0x40 driving 16
// servos at 50 Hz.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in missing configuration values. Servo overrides
// without pulse endpoints inherit the top-level ones, so it must run again
// after servos are added in code.
func (c *Config) ApplyDefaults() {
	if c.ActiveChannels == 0 {
		c.ActiveChannels = DefaultActiveChannels
	}
	if c.TickIntervalMS == 0 {
		c.TickIntervalMS = DefaultTickIntervalMS
	}
	if c.PWMFrequencyHz == 0 {
		c.PWMFrequencyHz = DefaultPWMFrequencyHz
	}
	if len(c.Drivers) == 0 {
		c.Drivers = []DriverConfig{{}}
	}
	for i := range c.Drivers {
		if c.Drivers[i].Address == 0 {
			c.Drivers[i].Address = core.DefaultPCA9685Address + uint8(i)
		}
	}
	if c.PulseMin == 0 {
		c.PulseMin = core.DefaultPulseMin
	}
	if c.PulseMax == 0 {
		c.PulseMax = core.DefaultPulseMax
	}
	for i := range c.Servos {
		if c.Servos[i].PulseMin == 0 {
			c.Servos[i].PulseMin = c.PulseMin
		}
		if c.Servos[i].PulseMax == 0 {
			c.Servos[i].PulseMax = c.PulseMax
		}
	}
	if c.Serial.Device == "" {
		c.Serial.Device = DefaultSerialDevice
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = DefaultBaud
	}
}

// Validate checks the configuration after defaults are applied
func (c *Config) Validate() error {
	if c.ActiveChannels < 1 || c.ActiveChannels > sequencer.MaxChannels {
		return invalid("active_channels must be 1-" + core.Itoa(sequencer.MaxChannels))
	}
	if c.TickIntervalMS == 0 {
		return invalid("tick_interval_ms must be positive")
	}
	if c.PWMFrequencyHz < 24 || c.PWMFrequencyHz > 1526 {
		return invalid("pwm_frequency_hz must be 24-1526")
	}
	if len(c.Drivers) == 0 || len(c.Drivers)*core.ChannelsPerChip > sequencer.MaxChannels {
		return invalid("drivers must list 1-" + core.Itoa(sequencer.MaxChannels/core.ChannelsPerChip) + " chips")
	}
	if c.ActiveChannels > len(c.Drivers)*core.ChannelsPerChip {
		return invalid("active_channels exceeds the channels of the configured drivers")
	}
	seen := make(map[uint8]bool, len(c.Drivers))
	for _, d := range c.Drivers {
		if d.Address < 0x40 || d.Address > 0x7F {
			return invalid("driver address out of range")
		}
		if seen[d.Address] {
			return invalid("duplicate driver address")
		}
		seen[d.Address] = true
	}
	if err := checkPulse(c.PulseMin, c.PulseMax); err != nil {
		return err
	}
	var servos [sequencer.MaxChannels]bool
	for _, s := range c.Servos {
		if !sequencer.ValidChannel(s.Channel) {
			return invalid("servo channel " + core.Itoa(s.Channel) + " out of range")
		}
		if servos[s.Channel] {
			return invalid("servo channel " + core.Itoa(s.Channel) + " listed twice")
		}
		servos[s.Channel] = true
		if err := checkPulse(s.PulseMin, s.PulseMax); err != nil {
			return err
		}
	}
	return nil
}

func checkPulse(lo, hi uint16) error {
	if lo >= hi || hi > core.PWMMaxTicks {
		return invalid("pulse_min must be below pulse_max, both at most 4095")
	}
	return nil
}

func invalid(msg string) error {
	return fault.Wrap(ErrInvalid, fmsg.With(msg), ftag.With(ftag.InvalidArgument))
}

// Calibration returns the pulse endpoints for channel ch
func (c *Config) Calibration(ch int) core.Calibration {
	for _, s := range c.Servos {
		if s.Channel == ch {
			return core.Calibration{PulseMin: s.PulseMin, PulseMax: s.PulseMax}
		}
	}
	return core.Calibration{PulseMin: c.PulseMin, PulseMax: c.PulseMax}
}

// Addresses returns the chip addresses in channel order
func (c *Config) Addresses() []uint8 {
	addrs := make([]uint8, len(c.Drivers))
	for i, d := range c.Drivers {
		addrs[i] = d.Address
	}
	return addrs
}

// ServoName returns the configured name of channel ch, or "" if none
func (c *Config) ServoName(ch int) string {
	for _, s := range c.Servos {
		if s.Channel == ch {
			return s.Name
		}
	}
	return ""
}
