package command

import (
	"servoseq/core"
	"servoseq/sequencer"
	"servoseq/sequencer/playback"
	"servoseq/sequencer/store"
)

// Router applies instructions to the store and scheduler
type Router struct {
	store *store.Store
	sched *playback.Scheduler
}

// NewRouter creates a router over st and sched
func NewRouter(st *store.Store, sched *playback.Scheduler) *Router {
	return &Router{store: st, sched: sched}
}

// Handle decodes and executes one line
func (r *Router) Handle(line string, now uint32) (string, error) {
	in, err := Decode(line)
	if err != nil {
		return "", err
	}
	return r.Execute(in, now)
}

// Execute applies one instruction at time now. On success it returns the
// advisory status text; on failure nothing has changed except what the
// error describes.
func (r *Router) Execute(in Instruction, now uint32) (string, error) {
	switch in.Kind {
	case KindStop:
		r.sched.StopAll()
		return "OK STOP", nil

	case KindClearAll:
		r.store.ClearAll()
		r.sched.StopAll()
		return "OK CLEAR_ALL", nil

	case KindPlayLoaded:
		n, err := r.sched.PlayLoaded(now)
		if err != nil {
			return "", err
		}
		return "OK PLAY_LOADED " + core.Itoa(n), nil

	case KindNumServos:
		if err := r.sched.SetActiveChannels(in.Count); err != nil {
			return "", err
		}
		return "OK NUM_SERVOS " + core.Itoa(in.Count), nil

	case KindMasterAngle:
		if err := r.sched.SetAll(in.Angle); err != nil {
			return "", err
		}
		return "OK MA " + core.Ftoa(in.Angle), nil

	case KindServoAngle:
		if err := r.sched.SetAngle(in.Channel, in.Angle); err != nil {
			return "", err
		}
		return "OK SA " + core.Itoa(in.Channel) + " " + core.Ftoa(in.Angle), nil

	case KindServoPulse:
		if err := r.sched.SetPulse(in.Channel, in.Pulse); err != nil {
			return "", err
		}
		return "OK SP " + core.Itoa(in.Channel) + " " + core.Itoa(in.Pulse), nil

	case KindLoadSeq:
		n, err := r.store.Load(in.Channel, in.Records)
		if err != nil {
			return "", err
		}
		seq, _ := r.store.Sequence(in.Channel)
		r.sched.Loaded(in.Channel, seq.Keyframes[0].Angle)
		core.RecordTiming(core.EvtLoad, uint8(in.Channel), now, uint32(n), 0)
		return "OK LOAD_SEQ " + core.Itoa(in.Channel) + " " + core.Itoa(n), nil

	case KindPlayServo:
		if err := r.sched.Play(in.Channel, now); err != nil {
			return "", err
		}
		return "OK PLAY_SERVO " + core.Itoa(in.Channel), nil
	}
	return "", sequencer.DecodeError("unknown instruction " + in.Kind.String())
}
