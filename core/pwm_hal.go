package core

import "errors"

// PWMMaxTicks is the largest pulse value a channel accepts (12-bit resolution).
const PWMMaxTicks = 4095

// PWMDriver is the abstract PWM output that core code uses.
// A channel index addresses one physical output across all driver chips.
type PWMDriver interface {
	// SetPulse drives a channel with a pulse width of ticks (0..PWMMaxTicks)
	SetPulse(channel uint8, ticks uint16) error

	// Channels returns how many channels the driver exposes
	Channels() int
}

// ErrChannelRange is returned by drivers for channels they do not cover
var ErrChannelRange = errors.New("pwm channel out of range")

// Global singleton used by core code.
var pwmDriver PWMDriver

// SetPWMDriver is called by target-specific code to register its driver.
func SetPWMDriver(d PWMDriver) {
	pwmDriver = d
}

// MustPWM returns the configured driver or panics if missing.
func MustPWM() PWMDriver {
	if pwmDriver == nil {
		panic("PWM driver not configured")
	}
	return pwmDriver
}
