// Package playback runs the per-channel keyframe state machines and owns the
// angle authority for every channel: either a playing sequence or a direct
// command, never both.
package playback

import (
	"servoseq/core"
	"servoseq/sequencer"
	"servoseq/sequencer/bezier"
)

// Output is the PWM side of the scheduler
type Output interface {
	WriteAngle(channel int, angle float64) error
	WritePulse(channel int, ticks uint16) error
	PulseAngle(channel int, ticks uint16) float64
	// Channels is how many physical outputs exist
	Channels() int
}

// Source supplies loaded sequences
type Source interface {
	Sequence(channel int) (sequencer.Sequence, bool)
}

// Scheduler advances every PLAYING channel once per tick. All methods must be
// called from the single control loop.
type Scheduler struct {
	out    Output
	src    Source
	states [sequencer.MaxChannels]sequencer.ChannelState
	// touched marks channels that have been configured, loaded or commanded
	touched [sequencer.MaxChannels]bool
	active  int
	playing bool

	// Finished is called when a channel runs off the end of its sequence
	Finished func(channel int)
}

// New creates a scheduler with n active channels. n is capped at the
// number of outputs.
func New(out Output, src Source, n int) *Scheduler {
	s := &Scheduler{out: out, src: src}
	if n < 1 || n > s.maxActive() {
		n = s.maxActive()
	}
	s.active = n
	return s
}

// maxActive is the largest channel count backed by a physical output
func (s *Scheduler) maxActive() int {
	return min(sequencer.MaxChannels, s.out.Channels())
}

// Tick advances all playing channels to time now
func (s *Scheduler) Tick(now uint32) {
	if !s.playing {
		return
	}

	stillPlaying := false
	for ch := range s.states {
		st := &s.states[ch]
		if st.State != sequencer.Playing {
			continue
		}

		seq, ok := s.src.Sequence(ch)
		if !ok || st.Segment+1 >= len(seq.Keyframes) {
			// sequence cleared or replaced underneath us
			s.idle(ch)
			continue
		}

		end := seq.Keyframes[st.Segment+1]
		c := bezier.SegmentControls(seq.Keyframes[st.Segment], end)
		elapsed := core.Elapsed(now, st.SegmentStart)
		s.write(ch, c.AtElapsed(elapsed))

		if c.Duration > 0 && int64(elapsed) < c.Duration {
			stillPlaying = true
			continue
		}

		st.Segment++
		if st.Segment+1 >= len(seq.Keyframes) {
			s.idle(ch)
			s.write(ch, end.Angle)
			core.RecordTiming(core.EvtPlayEnd, uint8(ch), now, uint32(st.Segment), 0)
			if s.Finished != nil {
				s.Finished(ch)
			}
			continue
		}
		st.SegmentStart = now
		core.RecordTiming(core.EvtSegment, uint8(ch), now, uint32(st.Segment), elapsed)
		stillPlaying = true
	}

	if !stillPlaying {
		s.playing = false
	}
}

// Play starts channel ch alone. Every other channel is stopped first. A
// rejected request leaves all channels as they were.
func (s *Scheduler) Play(ch int, now uint32) error {
	if !s.activeChannel(ch) {
		return sequencer.ValidationError("channel out of range")
	}
	seq, ok := s.src.Sequence(ch)
	if !ok || !seq.Playable() {
		return sequencer.NoSequenceError("no sequence for channel " + core.Itoa(ch))
	}
	s.StopAll()
	s.start(ch, now, false, len(seq.Keyframes))
	return nil
}

// PlayLoaded starts every active channel with a playable sequence as one
// group and returns how many started. Channels without a sequence are
// skipped; when none qualify nothing is changed.
func (s *Scheduler) PlayLoaded(now uint32) (int, error) {
	var eligible [sequencer.MaxChannels]int
	n := 0
	for ch := 0; ch < s.active; ch++ {
		if seq, ok := s.src.Sequence(ch); ok && seq.Playable() {
			eligible[ch] = len(seq.Keyframes)
			n++
		}
	}
	if n == 0 {
		return 0, sequencer.NoSequenceError("no loaded sequences on active channels")
	}

	s.StopAll()
	for ch := 0; ch < s.active; ch++ {
		if eligible[ch] > 0 {
			s.start(ch, now, true, eligible[ch])
		}
	}
	return n, nil
}

func (s *Scheduler) start(ch int, now uint32, group bool, frames int) {
	s.touched[ch] = true
	st := &s.states[ch]
	st.State = sequencer.Playing
	st.Segment = 0
	st.SegmentStart = now
	st.GroupMember = group
	s.playing = true
	core.RecordTiming(core.EvtPlayStart, uint8(ch), now, uint32(frames), 0)
}

// StopAll forces every channel IDLE
func (s *Scheduler) StopAll() {
	for ch := range s.states {
		s.idle(ch)
	}
	s.playing = false
}

// Stop forces one channel IDLE
func (s *Scheduler) Stop(ch int) {
	if sequencer.ValidChannel(ch) {
		s.idle(ch)
	}
}

func (s *Scheduler) idle(ch int) {
	s.states[ch].State = sequencer.Idle
	s.states[ch].GroupMember = false
}

// SetAngle stops channel ch and writes angle immediately
func (s *Scheduler) SetAngle(ch int, angle float64) error {
	if !s.activeChannel(ch) {
		return sequencer.ValidationError("channel out of range")
	}
	if !sequencer.ValidAngle(angle) {
		return sequencer.ValidationError("angle out of range")
	}
	s.touched[ch] = true
	s.idle(ch)
	core.RecordTiming(core.EvtDirectWrite, uint8(ch), core.GetTime(), uint32(angle*100), 0)
	return s.write(ch, angle)
}

// SetAll stops every active channel and writes angle to each of them
func (s *Scheduler) SetAll(angle float64) error {
	if !sequencer.ValidAngle(angle) {
		return sequencer.ValidationError("angle out of range")
	}
	var firstErr error
	for ch := 0; ch < s.active; ch++ {
		s.touched[ch] = true
		s.idle(ch)
		if err := s.write(ch, angle); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetPulse stops channel ch and writes a raw pulse, bypassing calibration.
// The recorded angle is the calibrated angle nearest to that pulse.
func (s *Scheduler) SetPulse(ch int, ticks int) error {
	if !s.activeChannel(ch) {
		return sequencer.ValidationError("channel out of range")
	}
	if ticks < 0 || ticks > sequencer.MaxPulse {
		return sequencer.ValidationError("pulse out of range")
	}
	s.touched[ch] = true
	s.idle(ch)
	core.RecordTiming(core.EvtDirectWrite, uint8(ch), core.GetTime(), uint32(ticks), 1)
	if err := s.out.WritePulse(ch, uint16(ticks)); err != nil {
		core.RecordTiming(core.EvtWriteError, uint8(ch), core.GetTime(), uint32(ticks), 0)
		return err
	}
	s.states[ch].Angle = sequencer.ClampAngle(s.out.PulseAngle(ch, uint16(ticks)))
	return nil
}

// Loaded resets channel ch after its sequence was replaced: IDLE, with the
// recorded angle moved to the new first keyframe. Nothing is written.
func (s *Scheduler) Loaded(ch int, firstAngle float64) {
	if !sequencer.ValidChannel(ch) {
		return
	}
	s.touched[ch] = true
	s.idle(ch)
	s.states[ch].Angle = sequencer.ClampAngle(firstAngle)
}

// SetActiveChannels changes the channel count used for validation and group
// playback. State of channels beyond n is kept. n may not exceed the number
// of physical outputs.
func (s *Scheduler) SetActiveChannels(n int) error {
	if n < 1 || n > s.maxActive() {
		return sequencer.ValidationError("channel count out of range")
	}
	for ch := 0; ch < n; ch++ {
		s.touched[ch] = true
	}
	s.active = n
	return nil
}

// ActiveChannels returns the configured channel count
func (s *Scheduler) ActiveChannels() int {
	return s.active
}

// IsPlaying reports whether any channel may still be PLAYING
func (s *Scheduler) IsPlaying() bool {
	return s.playing
}

// State returns a copy of channel ch's state
func (s *Scheduler) State(ch int) sequencer.ChannelState {
	if !sequencer.ValidChannel(ch) {
		return sequencer.ChannelState{}
	}
	return s.states[ch]
}

// Snapshot appends the state of every touched channel to dst
func (s *Scheduler) Snapshot(dst []sequencer.ChannelStatus) []sequencer.ChannelStatus {
	for ch := range s.states {
		if s.touched[ch] {
			dst = append(dst, sequencer.ChannelStatus{Channel: ch, ChannelState: s.states[ch]})
		}
	}
	return dst
}

func (s *Scheduler) activeChannel(ch int) bool {
	return ch >= 0 && ch < s.active
}

func (s *Scheduler) write(ch int, angle float64) error {
	angle = sequencer.ClampAngle(angle)
	if err := s.out.WriteAngle(ch, angle); err != nil {
		core.RecordTiming(core.EvtWriteError, uint8(ch), core.GetTime(), uint32(angle*100), 0)
		core.DebugPrintln("[PLAY] write failed on channel " + core.Itoa(ch) + ": " + err.Error())
		return err
	}
	// only a delivered angle becomes the channel's position
	s.states[ch].Angle = angle
	return nil
}
