// Package sequencer holds the data model shared by the keyframe sequencer:
// keyframes with optional tangent handles, per-channel sequences and the
// per-channel playback state.
package sequencer

const (
	// MaxChannels is the number of servo channels with resident state
	// (two chained 16-channel PWM drivers).
	MaxChannels = 32

	// MaxKeyframes bounds one channel's sequence
	MaxKeyframes = 128

	MinAngle = 0.0
	MaxAngle = 180.0

	// MaxPulse is the largest raw pulse accepted by SP (12-bit driver)
	MaxPulse = 4095
)

// ControlPoint is an optional tangent handle on one side of a keyframe
type ControlPoint struct {
	DeltaTime  float64 // ms, relative to the keyframe
	DeltaAngle float64 // degrees, relative to the keyframe
	Present    bool    // false selects the default symmetric handle
}

// Keyframe is a timestamped target angle
type Keyframe struct {
	Time  uint32  // ms, absolute within the sequence
	Angle float64 // degrees in [0,180]
	In    ControlPoint
	Out   ControlPoint
}

// Sequence is the ordered keyframe list of one channel. Keyframes are kept in
// the order received and never re-sorted.
type Sequence struct {
	Channel   int
	Keyframes []Keyframe
}

// Playable reports whether the sequence has at least one segment
func (s Sequence) Playable() bool {
	return len(s.Keyframes) >= 2
}

// Segments returns the number of keyframe pairs
func (s Sequence) Segments() int {
	if len(s.Keyframes) < 2 {
		return 0
	}
	return len(s.Keyframes) - 1
}

// PlaybackState is the per-channel scheduler state
type PlaybackState uint8

const (
	Idle PlaybackState = iota
	Playing
)

func (p PlaybackState) String() string {
	if p == Playing {
		return "PLAYING"
	}
	return "IDLE"
}

// ChannelState is the playback bookkeeping of one channel
type ChannelState struct {
	State        PlaybackState
	Segment      int     // index of the segment's start keyframe while PLAYING
	SegmentStart uint32  // clock at which the current segment began
	Angle        float64 // last angle commanded to the output
	GroupMember  bool    // started by PLAY_LOADED
}

// ChannelStatus is a copy of one channel's state for reporting
type ChannelStatus struct {
	Channel int
	ChannelState
}

// ValidChannel reports whether ch indexes resident channel state
func ValidChannel(ch int) bool {
	return ch >= 0 && ch < MaxChannels
}

// ValidAngle reports whether a lies in [0,180]. NaN is rejected.
func ValidAngle(a float64) bool {
	return a >= MinAngle && a <= MaxAngle
}

// ClampAngle limits a to [0,180]. NaN maps to 0.
func ClampAngle(a float64) float64 {
	if a >= MinAngle && a <= MaxAngle {
		return a
	}
	if a > MaxAngle {
		return MaxAngle
	}
	return MinAngle
}
