package core

// I2CBus is a single I2C bus as seen by device drivers. It has the same shape
// as tinygo's drivers.I2C, so machine.I2C on microcontrollers and periph.io
// buses on Linux hosts both satisfy it.
type I2CBus interface {
	// Tx writes w then reads into r in one transaction with the 7-bit address addr.
	// Either buffer may be empty.
	Tx(addr uint16, w, r []byte) error
}
