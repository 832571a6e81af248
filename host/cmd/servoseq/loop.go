package main

import (
	"context"
	"io"
	"time"

	"servoseq/core"
	"servoseq/firmware"
	"servoseq/host/api"

	"github.com/edaniels/golog"
)

// publishInterval is how often the API status snapshot is refreshed
const publishInterval = 50 * time.Millisecond

// daemon owns the manager. Only the goroutine in run touches it.
type daemon struct {
	mgr    *firmware.Manager
	out    io.Writer
	bridge *api.Bridge
	logger golog.Logger

	start       time.Time
	lastPublish time.Time
	pending     []byte
}

func newDaemon(mgr *firmware.Manager, out io.Writer, bridge *api.Bridge, logger golog.Logger) *daemon {
	return &daemon{mgr: mgr, out: out, bridge: bridge, logger: logger, start: time.Now()}
}

// now is the controller clock: milliseconds since start
func (d *daemon) now() uint32 {
	return uint32(time.Since(d.start).Milliseconds())
}

// run drives the manager until ctx is cancelled or the reader fails
func (d *daemon) run(ctx context.Context, input <-chan []byte, readErr <-chan error) error {
	core.SetTime(d.now())
	if err := d.mgr.Start(); err != nil {
		return err
	}

	var apiLines <-chan string
	if d.bridge != nil {
		apiLines = d.bridge.Lines()
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.flush()
			return nil
		case err := <-readErr:
			d.flush()
			return err
		case chunk := <-input:
			d.pending = append(d.pending, chunk...)
		case line := <-apiLines:
			d.logger.Debugw("api command", "line", line)
			d.mgr.ProcessLine(line)
		case <-ticker.C:
		}
		d.step(d.now())
	}
}

// step feeds buffered input and runs the manager until no complete line is
// left
func (d *daemon) step(now uint32) {
	for {
		n := d.mgr.Feed(d.pending)
		d.pending = d.pending[n:]
		if !d.mgr.Step(now) {
			break
		}
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	d.flush()

	if d.bridge != nil && time.Since(d.lastPublish) >= publishInterval {
		d.lastPublish = time.Now()
		d.bridge.Publish(api.StatusFrom(d.mgr, d.lastPublish))
	}
}

func (d *daemon) flush() {
	out := d.mgr.GetOutput()
	if len(out) == 0 {
		return
	}
	if _, err := d.out.Write(out); err != nil {
		d.logger.Errorw("write to host failed", "error", err)
	}
	if d.bridge != nil {
		d.bridge.Record(out)
	}
	d.logger.Debugw("status", "lines", string(out))
}
