package sequencer

import (
	"errors"

	"servoseq/core"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error categories. Every error returned by the sequencer packages wraps one
// of these, so callers classify with errors.Is.
var (
	ErrDecode     = errors.New("decode error")
	ErrValidation = errors.New("validation error")
	ErrLoad       = errors.New("load error")
	ErrNoSequence = errors.New("no playable sequence")
)

// DecodeError reports an unknown keyword or malformed field
func DecodeError(msg string) error {
	return fault.Wrap(ErrDecode, fmsg.With(msg), ftag.With(ftag.InvalidArgument))
}

// ValidationError reports a value outside its declared range
func ValidationError(msg string) error {
	return fault.Wrap(ErrValidation, fmsg.With(msg), ftag.With(ftag.InvalidArgument))
}

// NoSequenceError reports a play request with nothing to play
func NoSequenceError(msg string) error {
	return fault.Wrap(ErrNoSequence, fmsg.With(msg), ftag.With(ftag.NotFound))
}

// RecordError identifies the keyframe record that aborted a load
type RecordError struct {
	Index  int    // zero-based record index
	Reason string // what was wrong with it
}

func (e *RecordError) Error() string {
	return "record " + core.Itoa(e.Index) + ": " + e.Reason
}

// Unwrap makes a RecordError match ErrLoad
func (e *RecordError) Unwrap() error {
	return ErrLoad
}

// LoadError reports a load aborted at record index
func LoadError(channel, index int, reason string) error {
	return fault.Wrap(&RecordError{Index: index, Reason: reason},
		fmsg.With("LOAD_SEQ channel "+core.Itoa(channel)),
		ftag.With(ftag.InvalidArgument))
}
