// Package command turns serial command lines into instructions and routes
// them to the sequence store and the playback scheduler.
package command

import (
	"servoseq/sequencer"
)

// Kind identifies a decoded instruction
type Kind uint8

const (
	KindNone Kind = iota
	KindStop
	KindClearAll
	KindPlayLoaded
	KindNumServos
	KindMasterAngle
	KindServoAngle
	KindServoPulse
	KindLoadSeq
	KindPlayServo
)

var kindNames = [...]string{
	KindNone:        "NONE",
	KindStop:        "STOP",
	KindClearAll:    "CLEAR_ALL",
	KindPlayLoaded:  "PLAY_LOADED",
	KindNumServos:   "NUM_SERVOS",
	KindMasterAngle: "MA",
	KindServoAngle:  "SA",
	KindServoPulse:  "SP",
	KindLoadSeq:     "LOAD_SEQ",
	KindPlayServo:   "PLAY_SERVO",
}

// String returns the command keyword
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Instruction is one decoded command line. Only the fields used by Kind are
// set.
type Instruction struct {
	Kind    Kind
	Channel int
	Count   int
	Angle   float64
	Pulse   int
	Records string // raw LOAD_SEQ payload, split by the store
}

// maxTokens bounds a line: keyword plus at most two fields
const maxTokens = 3

type tokens struct {
	v [maxTokens]string
	n int
}

type command struct {
	kind   Kind
	fields int
	decode func(t *tokens, in *Instruction) error
}

var commands = map[string]command{
	"STOP":        {KindStop, 0, nil},
	"CLEAR_ALL":   {KindClearAll, 0, nil},
	"PLAY_LOADED": {KindPlayLoaded, 0, nil},
	"NUM_SERVOS":  {KindNumServos, 1, decodeCount},
	"MA":          {KindMasterAngle, 1, decodeMaster},
	"SA":          {KindServoAngle, 2, decodeServoAngle},
	"SP":          {KindServoPulse, 2, decodeServoPulse},
	"LOAD_SEQ":    {KindLoadSeq, 2, decodeLoad},
	"PLAY_SERVO":  {KindPlayServo, 1, decodeChannel},
}

// Decode parses one trimmed line. Keywords are case-sensitive and the field
// count must match the keyword exactly.
func Decode(line string) (Instruction, error) {
	var in Instruction

	t, ok := tokenize(line)
	if !ok {
		return in, sequencer.DecodeError("too many fields")
	}
	if t.n == 0 || t.v[0] == "" {
		return in, sequencer.DecodeError("empty command")
	}

	cmd, ok := commands[t.v[0]]
	if !ok {
		return in, sequencer.DecodeError("unknown command " + t.v[0])
	}
	if t.n-1 != cmd.fields {
		return in, sequencer.DecodeError(t.v[0] + " takes " + fieldCount(cmd.fields))
	}

	in.Kind = cmd.kind
	if cmd.decode != nil {
		if err := cmd.decode(&t, &in); err != nil {
			return Instruction{}, err
		}
	}
	return in, nil
}

// tokenize splits line on ':'. It fails rather than truncate when the line
// has more than maxTokens tokens.
func tokenize(line string) (tokens, bool) {
	var t tokens
	if len(line) == 0 {
		return t, true
	}
	start := 0
	for i := 0; i <= len(line); i++ {
		if i < len(line) && line[i] != ':' {
			continue
		}
		if t.n == maxTokens {
			return t, false
		}
		t.v[t.n] = line[start:i]
		t.n++
		start = i + 1
	}
	return t, true
}

func fieldCount(n int) string {
	switch n {
	case 0:
		return "no fields"
	case 1:
		return "1 field"
	}
	return "2 fields"
}

func parseChannel(s string) (int, error) {
	ch, ok := sequencer.ParseInt(s)
	if !ok {
		return 0, sequencer.DecodeError("channel is not an integer")
	}
	return ch, nil
}

func parseAngle(s string) (float64, error) {
	a, ok := sequencer.ParseFloat(s)
	if !ok {
		return 0, sequencer.DecodeError("angle is not a number")
	}
	return a, nil
}

func decodeCount(t *tokens, in *Instruction) error {
	n, ok := sequencer.ParseInt(t.v[1])
	if !ok {
		return sequencer.DecodeError("count is not an integer")
	}
	in.Count = n
	return nil
}

func decodeChannel(t *tokens, in *Instruction) error {
	var err error
	in.Channel, err = parseChannel(t.v[1])
	return err
}

func decodeMaster(t *tokens, in *Instruction) error {
	var err error
	in.Angle, err = parseAngle(t.v[1])
	return err
}

func decodeServoAngle(t *tokens, in *Instruction) error {
	var err error
	if in.Channel, err = parseChannel(t.v[1]); err != nil {
		return err
	}
	in.Angle, err = parseAngle(t.v[2])
	return err
}

func decodeServoPulse(t *tokens, in *Instruction) error {
	var err error
	if in.Channel, err = parseChannel(t.v[1]); err != nil {
		return err
	}
	p, ok := sequencer.ParseInt(t.v[2])
	if !ok {
		return sequencer.DecodeError("pulse is not an integer")
	}
	in.Pulse = p
	return nil
}

func decodeLoad(t *tokens, in *Instruction) error {
	var err error
	if in.Channel, err = parseChannel(t.v[1]); err != nil {
		return err
	}
	in.Records = t.v[2]
	return nil
}
