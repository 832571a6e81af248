package core

// Default pulse endpoints for a hobby servo at 50 Hz on a 4096-step driver
const (
	DefaultPulseMin = 150 // ticks at 0 degrees
	DefaultPulseMax = 600 // ticks at 180 degrees
)

// ServoRange is the angle span every servo is calibrated over
const ServoRange = 180.0

// Calibration maps a servo's angle range onto driver ticks
type Calibration struct {
	PulseMin uint16 // ticks at 0 degrees
	PulseMax uint16 // ticks at 180 degrees
}

// DefaultCalibration returns the calibration used when none is configured
func DefaultCalibration() Calibration {
	return Calibration{PulseMin: DefaultPulseMin, PulseMax: DefaultPulseMax}
}

// Ticks converts an angle to a pulse width. The angle is clamped to [0,180].
func (c Calibration) Ticks(angle float64) uint16 {
	angle = clampAngle(angle)
	span := float64(int(c.PulseMax) - int(c.PulseMin))
	ticks := float64(c.PulseMin) + angle/ServoRange*span
	if ticks < 0 {
		return 0
	}
	rounded := uint32(ticks + 0.5)
	if rounded > PWMMaxTicks {
		return PWMMaxTicks
	}
	return uint16(rounded)
}

// Angle converts a pulse width back to an angle, clamped to [0,180]
func (c Calibration) Angle(ticks uint16) float64 {
	span := float64(int(c.PulseMax) - int(c.PulseMin))
	if span == 0 {
		return 0
	}
	return clampAngle(float64(int(ticks)-int(c.PulseMin)) / span * ServoRange)
}

// ServoOutput turns angle writes into pulse writes on a PWMDriver using a
// per-channel calibration.
type ServoOutput struct {
	driver      PWMDriver
	calibration []Calibration
}

// NewServoOutput wraps driver with the default calibration on every channel
func NewServoOutput(driver PWMDriver) *ServoOutput {
	cal := make([]Calibration, driver.Channels())
	for i := range cal {
		cal[i] = DefaultCalibration()
	}
	return &ServoOutput{driver: driver, calibration: cal}
}

// SetCalibration overrides the calibration of one channel
func (s *ServoOutput) SetCalibration(channel int, cal Calibration) error {
	if channel < 0 || channel >= len(s.calibration) {
		return ErrChannelRange
	}
	s.calibration[channel] = cal
	return nil
}

// Calibration returns the calibration of one channel
func (s *ServoOutput) Calibration(channel int) Calibration {
	if channel < 0 || channel >= len(s.calibration) {
		return DefaultCalibration()
	}
	return s.calibration[channel]
}

// Channels returns the number of channels the underlying driver covers
func (s *ServoOutput) Channels() int {
	return len(s.calibration)
}

// WriteAngle clamps angle to [0,180], converts it and writes the pulse
func (s *ServoOutput) WriteAngle(channel int, angle float64) error {
	if channel < 0 || channel >= len(s.calibration) {
		return ErrChannelRange
	}
	return s.driver.SetPulse(uint8(channel), s.calibration[channel].Ticks(angle))
}

// WritePulse writes a raw pulse, bypassing calibration
func (s *ServoOutput) WritePulse(channel int, ticks uint16) error {
	if channel < 0 || channel >= len(s.calibration) {
		return ErrChannelRange
	}
	if ticks > PWMMaxTicks {
		ticks = PWMMaxTicks
	}
	return s.driver.SetPulse(uint8(channel), ticks)
}

// PulseAngle returns the angle a raw pulse corresponds to on channel
func (s *ServoOutput) PulseAngle(channel int, ticks uint16) float64 {
	return s.Calibration(channel).Angle(ticks)
}

func clampAngle(angle float64) float64 {
	// NaN compares false on both sides and falls through to 0
	if angle >= 0 && angle <= ServoRange {
		return angle
	}
	if angle > ServoRange {
		return ServoRange
	}
	return 0
}
