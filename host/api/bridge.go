// Package api serves controller status and accepts command lines over HTTP.
// Handlers never touch the sequencer directly: the control loop publishes
// snapshots into a Bridge and drains submitted lines from it.
package api

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"servoseq/firmware"
	"servoseq/sequencer"
)

// ErrBusy is returned when the command queue is full
var ErrBusy = errors.New("command queue full")

const historySize = 64

// Bridge hands data between the control loop and HTTP handlers
type Bridge struct {
	mu      sync.RWMutex
	status  Status
	history []string
	lines   chan string
}

// NewBridge creates a bridge that queues up to queue command lines
func NewBridge(queue int) *Bridge {
	return &Bridge{lines: make(chan string, queue)}
}

// Publish replaces the visible status
func (b *Bridge) Publish(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// Snapshot returns the last published status
func (b *Bridge) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Record keeps the status lines the controller emitted, most recent last
func (b *Bridge) Record(output []byte) {
	if len(output) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(output, "\n"), []byte{'\n'}) {
		b.history = append(b.history, string(line))
	}
	if n := len(b.history); n > historySize {
		b.history = append(b.history[:0], b.history[n-historySize:]...)
	}
}

// History returns a copy of the recorded status lines
func (b *Bridge) History() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.history...)
}

// Submit queues a command line for the control loop without blocking
func (b *Bridge) Submit(line string) error {
	select {
	case b.lines <- line:
		return nil
	default:
		return ErrBusy
	}
}

// Lines is drained by the control loop
func (b *Bridge) Lines() <-chan string {
	return b.lines
}

// StatusFrom builds a status from the manager. It must run on the goroutine
// that owns mgr.
func StatusFrom(mgr *firmware.Manager, now time.Time) Status {
	loaded := mgr.Loaded()
	var isLoaded [sequencer.MaxChannels]bool
	for _, ch := range loaded {
		isLoaded[ch] = true
	}

	var buf [sequencer.MaxChannels]sequencer.ChannelStatus
	snap := mgr.Snapshot(buf[:0])
	channels := make([]ChannelInfo, 0, len(snap))
	for _, st := range snap {
		channels = append(channels, ChannelInfo{
			Channel:     st.Channel,
			Name:        mgr.Config().ServoName(st.Channel),
			State:       st.State.String(),
			Angle:       st.Angle,
			Segment:     st.Segment,
			GroupMember: st.GroupMember,
			Loaded:      isLoaded[st.Channel],
		})
	}

	return Status{
		ActiveChannels: mgr.ActiveChannels(),
		Playing:        mgr.IsPlaying(),
		Loaded:         loaded,
		Channels:       channels,
		Updated:        now,
	}
}
