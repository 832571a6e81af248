//go:build rp2040

package main

import (
	"machine"
)

// PCA9685 chain wiring: I2C0 on the default pins (SDA=GP4, SCL=GP5)
const i2cFrequency = 400 * machine.KHz

// initI2C configures the bus the PCA9685 chain hangs off
func initI2C() (*machine.I2C, error) {
	bus := machine.I2C0
	err := bus.Configure(machine.I2CConfig{
		Frequency: i2cFrequency,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return nil, err
	}
	return bus, nil
}
