//go:build rp2040

package main

import (
	"machine"

	"servoseq/firmware"
)

// USB bytes drained per loop iteration before the manager steps
const maxReadPerStep = 64

// writeRetries bounds how long a stalled host can hold up the loop
const writeRetries = 10

// initUSB brings up the USB CDC console. machine.Serial is the CDC endpoint
// on this board, not a UART, so the config is ignored.
func initUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// drainUSB moves pending USB bytes into the manager's input FIFO. A byte is
// only read when the FIFO has room for it; the rest stays in the USB buffer.
func drainUSB(m *firmware.Manager) {
	n := min(maxReadPerStep, m.InputFree())
	for ; n > 0 && machine.Serial.Buffered() > 0; n-- {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return
		}
		m.ProcessByte(b)
	}
}

// writeUSB writes all of data unless the host stops reading
func writeUSB(data []byte) {
	for failures := 0; len(data) > 0 && failures < writeRetries; {
		n, err := machine.Serial.Write(data)
		if err != nil || n == 0 {
			failures++
			continue
		}
		data = data[n:]
	}
}
