package core

import "sync/atomic"

// TimerFreq is the rate of the system clock. Sequence keyframes are expressed
// in milliseconds, so the clock counts milliseconds.
const TimerFreq = 1000

var systemTicks uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (called by the platform loop and tests)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return ms * (TimerFreq / 1000)
}

// TimeReached reports whether now is at or past deadline.
// The comparison survives wraparound of the 32-bit counter.
func TimeReached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// Elapsed returns the ticks between since and now, or 0 if since is in the future
func Elapsed(now, since uint32) uint32 {
	d := int32(now - since)
	if d < 0 {
		return 0
	}
	return uint32(d)
}
