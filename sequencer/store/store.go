// Package store holds the resident keyframe sequences, one per channel, in
// fixed-capacity tables indexed by channel id.
package store

import (
	"errors"
	"math"

	"servoseq/sequencer"
)

// Record field layout: time,angle,in_dt,in_da,out_dt,out_da
const maxRecordFields = 6

var (
	errFieldCount  = errors.New("wrong field count")
	errTime        = errors.New("time is not a non-negative number")
	errAngle       = errors.New("angle is not a number")
	errAngleRange  = errors.New("angle outside 0-180")
	errHandle      = errors.New("control point is not a number")
	errHalfHandle  = errors.New("control point needs both fields")
	errEmptyRecord = errors.New("empty record")
	errTooMany     = errors.New("too many keyframes")
)

// Store owns every loaded sequence. It is not safe for concurrent use; the
// control loop is its only caller.
type Store struct {
	frames  [sequencer.MaxChannels][sequencer.MaxKeyframes]sequencer.Keyframe
	counts  [sequencer.MaxChannels]int
	loaded  [sequencer.MaxChannels]bool
	scratch [sequencer.MaxKeyframes]sequencer.Keyframe
}

// New creates an empty store
func New() *Store {
	return &Store{}
}

// Load parses a ';'-separated record list and installs it as channel ch's
// sequence, replacing any previous one. Every record is parsed before the
// table is touched, so a failing record leaves the old sequence in place.
// It returns the number of keyframes installed.
func (s *Store) Load(ch int, records string) (int, error) {
	if !sequencer.ValidChannel(ch) {
		return 0, sequencer.ValidationError("channel out of range")
	}

	n := 0
	start := 0
	for i := 0; i <= len(records); i++ {
		if i < len(records) && records[i] != ';' {
			continue
		}
		if n >= sequencer.MaxKeyframes {
			return 0, sequencer.LoadError(ch, n, errTooMany.Error())
		}
		kf, err := ParseRecord(records[start:i])
		if err != nil {
			return 0, sequencer.LoadError(ch, n, err.Error())
		}
		s.scratch[n] = kf
		n++
		start = i + 1
	}

	copy(s.frames[ch][:n], s.scratch[:n])
	s.counts[ch] = n
	s.loaded[ch] = true
	return n, nil
}

// Sequence returns channel ch's sequence. The keyframe slice aliases the
// store's table and is only valid until the next Load or ClearAll.
func (s *Store) Sequence(ch int) (sequencer.Sequence, bool) {
	if !sequencer.ValidChannel(ch) || !s.loaded[ch] {
		return sequencer.Sequence{Channel: ch}, false
	}
	return sequencer.Sequence{
		Channel:   ch,
		Keyframes: s.frames[ch][:s.counts[ch]],
	}, true
}

// Has reports whether channel ch has a loaded sequence
func (s *Store) Has(ch int) bool {
	return sequencer.ValidChannel(ch) && s.loaded[ch]
}

// Len returns the number of keyframes loaded for channel ch
func (s *Store) Len(ch int) int {
	if !s.Has(ch) {
		return 0
	}
	return s.counts[ch]
}

// Loaded lists the channels that have a sequence, in ascending order
func (s *Store) Loaded() []int {
	var chans []int
	for ch := 0; ch < sequencer.MaxChannels; ch++ {
		if s.loaded[ch] {
			chans = append(chans, ch)
		}
	}
	return chans
}

// ClearAll drops every sequence
func (s *Store) ClearAll() {
	for ch := range s.loaded {
		s.loaded[ch] = false
		s.counts[ch] = 0
	}
}

// ParseRecord decodes one "time,angle[,in_dt,in_da[,out_dt,out_da]]" record.
// A handle is present when both of its fields are numbers and absent when
// both are empty or missing.
func ParseRecord(rec string) (sequencer.Keyframe, error) {
	var kf sequencer.Keyframe
	var fields [maxRecordFields]string

	if len(rec) == 0 {
		return kf, errEmptyRecord
	}

	n := 0
	start := 0
	for i := 0; i <= len(rec); i++ {
		if i < len(rec) && rec[i] != ',' {
			continue
		}
		if n == maxRecordFields {
			return kf, errFieldCount
		}
		fields[n] = rec[start:i]
		n++
		start = i + 1
	}
	if n < 2 {
		return kf, errFieldCount
	}

	t, ok := sequencer.ParseFloat(fields[0])
	if !ok || t < 0 || t > math.MaxUint32 {
		return kf, errTime
	}
	kf.Time = uint32(math.Round(t))

	a, ok := sequencer.ParseFloat(fields[1])
	if !ok {
		return kf, errAngle
	}
	if !sequencer.ValidAngle(a) {
		return kf, errAngleRange
	}
	kf.Angle = a

	var err error
	if kf.In, err = parseHandle(fields[2], fields[3]); err != nil {
		return kf, err
	}
	if kf.Out, err = parseHandle(fields[4], fields[5]); err != nil {
		return kf, err
	}
	return kf, nil
}

func parseHandle(dt, da string) (sequencer.ControlPoint, error) {
	var cp sequencer.ControlPoint
	dtEmpty := isBlank(dt)
	daEmpty := isBlank(da)
	if dtEmpty && daEmpty {
		return cp, nil
	}
	if dtEmpty || daEmpty {
		return cp, errHalfHandle
	}
	var ok bool
	if cp.DeltaTime, ok = sequencer.ParseFloat(dt); !ok {
		return cp, errHandle
	}
	if cp.DeltaAngle, ok = sequencer.ParseFloat(da); !ok {
		return cp, errHandle
	}
	cp.Present = true
	return cp, nil
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return false
		}
	}
	return true
}
