package playback

import (
	"errors"
	"math"
	"testing"

	"servoseq/sequencer"
	"servoseq/sequencer/store"
)

type write struct {
	channel int
	angle   float64
	pulse   int // -1 for angle writes
}

type mockOutput struct {
	writes   []write
	fail     bool
	channels int // 0 means MaxChannels
}

func (m *mockOutput) Channels() int {
	if m.channels == 0 {
		return sequencer.MaxChannels
	}
	return m.channels
}

func (m *mockOutput) WriteAngle(channel int, angle float64) error {
	m.writes = append(m.writes, write{channel, angle, -1})
	if m.fail {
		return errors.New("bus error")
	}
	return nil
}

func (m *mockOutput) WritePulse(channel int, ticks uint16) error {
	m.writes = append(m.writes, write{channel, 0, int(ticks)})
	return nil
}

func (m *mockOutput) PulseAngle(channel int, ticks uint16) float64 {
	return (float64(ticks) - 150) * 180 / 450
}

func (m *mockOutput) last(channel int) (write, bool) {
	for i := len(m.writes) - 1; i >= 0; i-- {
		if m.writes[i].channel == channel {
			return m.writes[i], true
		}
	}
	return write{}, false
}

func newTestScheduler(t *testing.T, active int) (*Scheduler, *store.Store, *mockOutput) {
	t.Helper()
	out := &mockOutput{}
	st := store.New()
	return New(out, st, active), st, out
}

func load(t *testing.T, st *store.Store, s *Scheduler, ch int, recs string) {
	t.Helper()
	if _, err := st.Load(ch, recs); err != nil {
		t.Fatalf("Load(%d, %q): %v", ch, recs, err)
	}
	seq, _ := st.Sequence(ch)
	s.Loaded(ch, seq.Keyframes[0].Angle)
}

func TestPlaySingleSegment(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,90;1000,150")

	if err := s.Play(0, 0); err != nil {
		t.Fatalf("Play: %v", err)
	}

	s.Tick(0)
	if got := s.State(0).Angle; math.Abs(got-90) > 1e-9 {
		t.Errorf("angle at t=0 = %v, want 90", got)
	}

	prev := s.State(0).Angle
	for now := uint32(10); now < 1000; now += 10 {
		s.Tick(now)
		cur := s.State(0).Angle
		if cur <= prev {
			t.Fatalf("angle not increasing at %dms: %v <= %v", now, cur, prev)
		}
		if now == 500 && (cur <= 90 || cur >= 150) {
			t.Errorf("angle at t=500 = %v, want strictly between 90 and 150", cur)
		}
		prev = cur
	}

	s.Tick(1000)
	state := s.State(0)
	if state.Angle != 150 {
		t.Errorf("final angle = %v, want 150", state.Angle)
	}
	if state.State != sequencer.Idle {
		t.Errorf("final state = %v, want IDLE", state.State)
	}
	if s.IsPlaying() {
		t.Error("global flag still set after last channel finished")
	}
	if w, _ := out.last(0); w.angle != 150 {
		t.Errorf("last write = %v, want 150", w.angle)
	}
}

func TestTickWritesEveryTick(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 2, "0,10;1000,10")
	s.Play(2, 0)

	for now := uint32(0); now < 100; now += 10 {
		s.Tick(now)
	}
	if len(out.writes) != 10 {
		t.Errorf("writes = %d, want one per tick (10)", len(out.writes))
	}
}

func TestMissedTickDelaysOnlyCurrentSegment(t *testing.T) {
	s, st, _ := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;100,50;200,100")
	s.Play(0, 0)

	// first segment ends late, at 180ms
	s.Tick(180)
	state := s.State(0)
	if state.Segment != 1 || state.SegmentStart != 180 {
		t.Fatalf("segment = %d start = %d, want 1 at 180", state.Segment, state.SegmentStart)
	}

	s.Tick(230)
	if got := s.State(0).Angle; got <= 50 || got >= 100 {
		t.Errorf("second segment at half way = %v, want between 50 and 100", got)
	}
	s.Tick(280)
	if s.State(0).State != sequencer.Idle || s.State(0).Angle != 100 {
		t.Errorf("state after second segment = %+v", s.State(0))
	}
}

func TestDegenerateSegmentSnaps(t *testing.T) {
	tests := []struct {
		name string
		recs string
	}{
		{"zero duration", "0,10;0,50;500,90"},
		{"negative duration", "300,10;100,50;500,90"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, _ := newTestScheduler(t, 16)
			load(t, st, s, 0, tt.recs)
			s.Play(0, 0)

			s.Tick(0)
			state := s.State(0)
			if state.Angle != 50 {
				t.Errorf("angle = %v, want end angle 50", state.Angle)
			}
			if state.Segment != 1 || state.State != sequencer.Playing {
				t.Errorf("state = %+v, want PLAYING segment 1", state)
			}
		})
	}
}

func TestDirectAngleStopsPlayback(t *testing.T) {
	for _, angle := range []float64{0, 45.5, 90, 180} {
		s, st, out := newTestScheduler(t, 16)
		load(t, st, s, 3, "0,0;1000,180")
		s.Play(3, 0)
		s.Tick(100)

		if err := s.SetAngle(3, angle); err != nil {
			t.Fatalf("SetAngle(%v): %v", angle, err)
		}
		s.Tick(200)

		state := s.State(3)
		if state.State != sequencer.Idle || state.Angle != angle {
			t.Errorf("after SA %v: %+v", angle, state)
		}
		if w, _ := out.last(3); w.angle != angle {
			t.Errorf("last write = %v, want %v", w.angle, angle)
		}
	}
}

func TestDirectAngleValidation(t *testing.T) {
	s, _, out := newTestScheduler(t, 4)

	tests := []struct {
		ch    int
		angle float64
	}{
		{4, 90},
		{-1, 90},
		{0, 180.5},
		{0, -1},
		{0, math.NaN()},
	}
	for _, tt := range tests {
		if err := s.SetAngle(tt.ch, tt.angle); !errors.Is(err, sequencer.ErrValidation) {
			t.Errorf("SetAngle(%d, %v) err = %v", tt.ch, tt.angle, err)
		}
	}
	if err := s.SetAll(200); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("SetAll(200) err = %v", err)
	}
	if len(out.writes) != 0 {
		t.Errorf("rejected commands wrote %d times", len(out.writes))
	}
}

func TestSetAllActiveOnly(t *testing.T) {
	s, _, out := newTestScheduler(t, 3)
	if err := s.SetAll(60); err != nil {
		t.Fatal(err)
	}
	if len(out.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(out.writes))
	}
	for ch := 0; ch < 3; ch++ {
		if s.State(ch).Angle != 60 {
			t.Errorf("channel %d angle = %v", ch, s.State(ch).Angle)
		}
	}
}

func TestSetPulse(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 1, "0,0;1000,180")
	s.Play(1, 0)

	if err := s.SetPulse(1, 375); err != nil {
		t.Fatal(err)
	}
	state := s.State(1)
	if state.State != sequencer.Idle || state.Angle != 90 {
		t.Errorf("after SP: %+v", state)
	}
	if w, _ := out.last(1); w.pulse != 375 {
		t.Errorf("pulse write = %+v", w)
	}
	if err := s.SetPulse(1, 4096); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("SetPulse(4096) err = %v", err)
	}
}

func TestPlayStopsOthers(t *testing.T) {
	s, st, _ := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;1000,180")
	load(t, st, s, 1, "0,0;1000,180")

	s.Play(0, 0)
	s.Play(1, 10)

	if s.State(0).State != sequencer.Idle {
		t.Error("channel 0 still playing after PLAY_SERVO:1")
	}
	if s.State(1).State != sequencer.Playing || s.State(1).GroupMember {
		t.Errorf("channel 1 state = %+v", s.State(1))
	}
}

func TestPlayRejectedLeavesStateAlone(t *testing.T) {
	s, st, _ := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;1000,180")
	load(t, st, s, 1, "0,45")
	s.Play(0, 0)

	if err := s.Play(1, 5); !errors.Is(err, sequencer.ErrNoSequence) {
		t.Errorf("single keyframe Play err = %v", err)
	}
	if err := s.Play(7, 5); !errors.Is(err, sequencer.ErrNoSequence) {
		t.Errorf("unloaded Play err = %v", err)
	}
	if err := s.Play(16, 5); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("inactive Play err = %v", err)
	}
	if s.State(0).State != sequencer.Playing {
		t.Error("rejected Play stopped channel 0")
	}
}

func TestPlayLoadedActiveOnly(t *testing.T) {
	s, st, _ := newTestScheduler(t, 16)
	for _, ch := range []int{0, 1, 5} {
		load(t, st, s, ch, "0,10;500,20")
	}
	if err := s.SetActiveChannels(2); err != nil {
		t.Fatal(err)
	}

	n, err := s.PlayLoaded(0)
	if err != nil {
		t.Fatalf("PlayLoaded: %v", err)
	}
	if n != 2 {
		t.Errorf("started %d channels, want 2", n)
	}
	for _, ch := range []int{0, 1} {
		if st := s.State(ch); st.State != sequencer.Playing || !st.GroupMember {
			t.Errorf("channel %d = %+v, want PLAYING group member", ch, st)
		}
	}
	if s.State(5).State != sequencer.Idle {
		t.Error("channel 5 started outside the active count")
	}
}

func TestPlayLoadedNothingEligible(t *testing.T) {
	s, st, _ := newTestScheduler(t, 2)
	load(t, st, s, 5, "0,10;500,20")
	load(t, st, s, 0, "0,10")
	s.SetAngle(1, 30)

	n, err := s.PlayLoaded(0)
	if n != 0 || !errors.Is(err, sequencer.ErrNoSequence) {
		t.Errorf("PlayLoaded = %d, %v", n, err)
	}
	if s.IsPlaying() {
		t.Error("PlayLoaded with nothing eligible set the global flag")
	}
}

func TestSequenceRemovedWhilePlaying(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;1000,180")
	s.Play(0, 0)
	s.Tick(10)
	writes := len(out.writes)

	st.ClearAll()
	s.Tick(20)

	if s.State(0).State != sequencer.Idle {
		t.Error("channel still PLAYING after its sequence was removed")
	}
	if len(out.writes) != writes {
		t.Error("tick wrote output for a removed sequence")
	}
	if s.IsPlaying() {
		t.Error("global flag not cleared")
	}
}

func TestFinishedCallback(t *testing.T) {
	s, st, _ := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,10;100,20")
	load(t, st, s, 1, "0,10;300,20")

	var done []int
	s.Finished = func(ch int) { done = append(done, ch) }
	s.PlayLoaded(0)

	for now := uint32(0); now <= 300; now += 10 {
		s.Tick(now)
	}
	if len(done) != 2 || done[0] != 0 || done[1] != 1 {
		t.Errorf("finished = %v, want [0 1]", done)
	}
}

func TestLoadedResetsAngle(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;1000,180")
	s.Play(0, 0)
	s.Tick(500)

	load(t, st, s, 0, "0,33;100,44")
	state := s.State(0)
	if state.State != sequencer.Idle || state.Angle != 33 {
		t.Errorf("after reload: %+v", state)
	}
	if w, _ := out.last(0); w.angle == 33 {
		t.Error("load wrote to the output")
	}
}

func TestSetActiveChannels(t *testing.T) {
	s, _, _ := newTestScheduler(t, 16)
	for _, n := range []int{0, -1, sequencer.MaxChannels + 1} {
		if err := s.SetActiveChannels(n); !errors.Is(err, sequencer.ErrValidation) {
			t.Errorf("SetActiveChannels(%d) err = %v", n, err)
		}
	}
	if s.ActiveChannels() != 16 {
		t.Errorf("active = %d after rejected changes", s.ActiveChannels())
	}

	s.SetActiveChannels(3)
	snap := s.Snapshot(nil)
	if len(snap) != 3 {
		t.Errorf("snapshot has %d channels, want 3", len(snap))
	}
}

func TestActiveChannelsBoundedByOutputs(t *testing.T) {
	out := &mockOutput{channels: 16}
	st := store.New()
	s := New(out, st, 25)
	if s.ActiveChannels() != 16 {
		t.Errorf("active = %d, want 16 outputs", s.ActiveChannels())
	}

	if err := s.SetActiveChannels(25); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("SetActiveChannels(25) with 16 outputs err = %v", err)
	}
	if err := s.SetActiveChannels(16); err != nil {
		t.Errorf("SetActiveChannels(16): %v", err)
	}

	if err := s.SetAngle(18, 90); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("SetAngle(18) err = %v", err)
	}
	if got := s.State(18); got.Angle != 0 || got.State != sequencer.Idle {
		t.Errorf("rejected SetAngle changed state: %+v", got)
	}

	load(t, st, s, 20, "0,10;100,20")
	if err := s.Play(20, 0); !errors.Is(err, sequencer.ErrValidation) {
		t.Errorf("Play(20) err = %v", err)
	}
	if s.IsPlaying() {
		t.Error("channel without an output started playing")
	}
}

func TestFailedWriteKeepsAngle(t *testing.T) {
	s, _, out := newTestScheduler(t, 16)
	if err := s.SetAngle(4, 30); err != nil {
		t.Fatalf("SetAngle: %v", err)
	}

	out.fail = true
	if err := s.SetAngle(4, 120); err == nil {
		t.Fatal("expected write error")
	}
	if got := s.State(4).Angle; got != 30 {
		t.Errorf("angle = %v after failed write, want 30", got)
	}
}

func TestWriteErrorKeepsPlaying(t *testing.T) {
	s, st, out := newTestScheduler(t, 16)
	load(t, st, s, 0, "0,0;100,180")
	s.Play(0, 0)
	out.fail = true

	s.Tick(50)
	if s.State(0).State != sequencer.Playing {
		t.Error("write error stopped playback")
	}
}
