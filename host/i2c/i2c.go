// Package i2c opens a Linux I2C bus for the PCA9685 chain
package i2c

import (
	"servoseq/core"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus is an open I2C bus. It satisfies core.I2CBus.
type Bus struct {
	bus  i2c.BusCloser
	name string
}

var _ core.I2CBus = (*Bus)(nil)

// Open initializes the host drivers and opens the named bus ("" for the
// first one found, "1" or "/dev/i2c-1" for a specific one)
func Open(name string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fault.Wrap(core.ErrHardwareInit,
			fmsg.With("initialize host drivers: "+err.Error()),
			ftag.With(ftag.Internal))
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fault.Wrap(core.ErrHardwareInit,
			fmsg.With("open i2c bus "+quote(name)+": "+err.Error()),
			ftag.With(ftag.NotFound))
	}
	core.DebugPrintln("[I2C] opened " + bus.String())
	return &Bus{bus: bus, name: bus.String()}, nil
}

// Tx performs one write-then-read transaction with the device at addr
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

// String returns the bus name reported by the driver
func (b *Bus) String() string {
	return b.name
}

// Close releases the bus
func (b *Bus) Close() error {
	return b.bus.Close()
}

func quote(name string) string {
	if name == "" {
		return "(default)"
	}
	return name
}
