//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"servoseq/core"
)

// RP2040 TIMER peripheral: a free-running 64-bit microsecond counter read
// through the unlatched raw registers
const (
	timerBase = 0x40054000
	timerRAWH = timerBase + 0x08
	timerRAWL = timerBase + 0x0C
)

var (
	rawHigh = (*volatile.Register32)(unsafe.Pointer(uintptr(timerRAWH)))
	rawLow  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerRAWL)))
)

// uptimeMicros returns microseconds since reset. The high word is read on
// both sides of the low word; a mismatch means the low word wrapped.
func uptimeMicros() uint64 {
	for {
		hi := rawHigh.Get()
		lo := rawLow.Get()
		if rawHigh.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// UpdateSystemTime sets the core millisecond clock from the hardware timer.
// The 32-bit clock wraps after ~49 days.
func UpdateSystemTime() {
	core.SetTime(uint32(uptimeMicros() / 1000))
}
