package core

import (
	"errors"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"tinygo.org/x/drivers/pca9685"
)

// ChannelsPerChip is the number of outputs on one PCA9685
const ChannelsPerChip = 16

// DefaultPCA9685Address is the address of a PCA9685 with no address jumpers set
const DefaultPCA9685Address = 0x40

// ErrHardwareInit means a driver chip did not answer during bring-up.
// Callers treat it as fatal.
var ErrHardwareInit = errors.New("pwm driver not reachable")

// pwmChip is the subset of the PCA9685 driver used by the chain
type pwmChip interface {
	IsConnected() error
	Configure(cfg pca9685.PWMConfig) error
	Set(channel uint8, value uint32)
}

// PCA9685Chain implements PWMDriver over one or more PCA9685 chips sharing a
// bus. Chip i covers channels [16*i, 16*i+16).
type PCA9685Chain struct {
	chips []pwmChip
	addrs []uint8
}

// NewPCA9685Chain probes and configures one chip per address.
// frequencyHz is the servo frame rate, typically 50.
func NewPCA9685Chain(bus I2CBus, addrs []uint8, frequencyHz uint32) (*PCA9685Chain, error) {
	chips := make([]pwmChip, len(addrs))
	for i, addr := range addrs {
		dev := pca9685.New(bus, addr)
		chips[i] = &dev
	}
	return newPCA9685Chain(chips, addrs, frequencyHz)
}

func newPCA9685Chain(chips []pwmChip, addrs []uint8, frequencyHz uint32) (*PCA9685Chain, error) {
	if len(chips) == 0 {
		return nil, fault.Wrap(ErrHardwareInit,
			fmsg.With("no PCA9685 addresses configured"),
			ftag.With(ftag.Internal))
	}
	if frequencyHz == 0 {
		return nil, fault.Wrap(ErrHardwareInit,
			fmsg.With("pwm frequency must be non-zero"),
			ftag.With(ftag.Internal))
	}

	// Period in nanoseconds, as the driver expects
	period := uint64(1000000000) / uint64(frequencyHz)

	for i, chip := range chips {
		// nil means the chip answered with the expected MODE1 value
		if err := chip.IsConnected(); err != nil {
			return nil, fault.Wrap(ErrHardwareInit,
				fmsg.With("PCA9685 at address "+hexByte(addrs[i])+" did not respond: "+err.Error()),
				ftag.With(ftag.Internal))
		}
		if err := chip.Configure(pca9685.PWMConfig{Period: period}); err != nil {
			return nil, fault.Wrap(err,
				fmsg.With("configure PCA9685 at address "+hexByte(addrs[i])),
				ftag.With(ftag.Internal))
		}
		DebugPrintln("[PWM] PCA9685 " + hexByte(addrs[i]) + " ready, channels " +
			itoa(i*ChannelsPerChip) + "-" + itoa(i*ChannelsPerChip+ChannelsPerChip-1))
	}

	return &PCA9685Chain{chips: chips, addrs: addrs}, nil
}

// SetPulse drives a channel with a pulse width in ticks
func (c *PCA9685Chain) SetPulse(channel uint8, ticks uint16) error {
	chip := int(channel) / ChannelsPerChip
	if chip >= len(c.chips) {
		return ErrChannelRange
	}
	if ticks > PWMMaxTicks {
		ticks = PWMMaxTicks
	}
	c.chips[chip].Set(channel%ChannelsPerChip, uint32(ticks))
	return nil
}

// Channels returns the number of outputs across all chips
func (c *PCA9685Chain) Channels() int {
	return len(c.chips) * ChannelsPerChip
}

// Release turns every output off so servos stop holding position
func (c *PCA9685Chain) Release() {
	for _, chip := range c.chips {
		for ch := uint8(0); ch < ChannelsPerChip; ch++ {
			chip.Set(ch, 0)
		}
	}
}

// hexByte formats an I2C address as 0xNN
func hexByte(b uint8) string {
	const digits = "0123456789abcdef"
	return "0x" + string([]byte{digits[b>>4], digits[b&0x0f]})
}
