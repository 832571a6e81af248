// Package firmware runs the servo sequencer control loop: it frames incoming
// bytes into command lines, routes them, and drives the playback tick from a
// timer queue. The same Manager runs on the microcontroller and on a Linux
// host.
package firmware

import (
	"errors"

	"servoseq/core"
	"servoseq/protocol"
	"servoseq/sequencer"
	"servoseq/sequencer/command"
	"servoseq/sequencer/config"
	"servoseq/sequencer/playback"
	"servoseq/sequencer/store"
)

const (
	InputBufferSize  = 8192
	MaxLineLength    = 4096
	OutputBufferSize = 4096
)

var (
	ErrNotInitialized     = errors.New("manager not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
)

// Manager coordinates all sequencer components. It is owned by one control
// loop; none of its methods may be called concurrently.
type Manager struct {
	config *config.Config

	input  *protocol.FifoBuffer
	lines  *protocol.LineReader
	output *protocol.ScratchOutput

	servos *core.ServoOutput
	store  *store.Store
	sched  *playback.Scheduler
	router *command.Router

	timers core.TimerQueue
	tick   core.Timer

	initialized bool
	running     bool
}

// NewManager creates a manager for cfg. Missing values in cfg are filled
// with defaults before it is validated.
func NewManager(cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	input := protocol.NewFifoBuffer(InputBufferSize)
	return &Manager{
		config: cfg,
		input:  input,
		lines:  protocol.NewLineReader(input, MaxLineLength),
		output: protocol.NewScratchOutput(OutputBufferSize),
	}, nil
}

// Initialize binds the manager to its PWM output
func (m *Manager) Initialize(driver core.PWMDriver) error {
	if m.initialized {
		return ErrAlreadyInitialized
	}

	m.servos = core.NewServoOutput(driver)
	for ch := 0; ch < m.servos.Channels() && ch < sequencer.MaxChannels; ch++ {
		if err := m.servos.SetCalibration(ch, m.config.Calibration(ch)); err != nil {
			return err
		}
	}

	m.store = store.New()
	m.sched = playback.New(m.servos, m.store, m.config.ActiveChannels)
	m.sched.Finished = func(ch int) {
		m.SendResponse("DONE " + core.Itoa(ch) + "\n")
	}
	m.router = command.NewRouter(m.store, m.sched)

	m.initialized = true
	core.DebugPrintln("[SEQ] initialized " + core.Itoa(m.servos.Channels()) + " outputs, " +
		core.Itoa(m.config.ActiveChannels) + " active")
	return nil
}

// Start schedules the playback tick
func (m *Manager) Start() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.running {
		return nil
	}

	interval := core.TimerFromMS(m.config.TickIntervalMS)
	m.tick.WakeTime = core.GetTime() + interval
	m.tick.Handler = core.Periodic(interval, m.sched.Tick)
	m.timers.Schedule(&m.tick)

	m.running = true
	m.SendResponse("servoseq ready\n")
	return nil
}

// Stop halts playback and the tick timer
func (m *Manager) Stop() {
	m.timers.Cancel(&m.tick)
	if m.sched != nil {
		m.sched.StopAll()
	}
	m.running = false
}

// IsRunning returns whether the tick timer is active
func (m *Manager) IsRunning() bool {
	return m.running
}

// Feed queues received bytes and returns how many were accepted. The caller
// retries the rest after a Step has consumed a line.
func (m *Manager) Feed(data []byte) int {
	return m.input.Write(data)
}

// InputFree returns how many more bytes Feed or ProcessByte will accept
func (m *Manager) InputFree() int {
	return m.input.Free()
}

// ProcessByte queues a single received byte
func (m *Manager) ProcessByte(b byte) bool {
	return m.input.Write([]byte{b}) == 1
}

// Step runs one loop iteration at time now: at most one complete command
// line, then any due timers. It reports whether a line was consumed.
func (m *Manager) Step(now uint32) bool {
	core.SetTime(now)

	consumed := false
	line, status := m.lines.NextLine()
	switch status {
	case protocol.LineReady:
		consumed = true
		if len(line) > 0 {
			m.ProcessLine(string(line))
		}
	case protocol.LineOverflow:
		consumed = true
		m.SendResponse("ERR line too long\n")
		core.DebugPrintln("[SEQ] dropped line over " + core.Itoa(MaxLineLength) + " bytes")
	}

	if m.running {
		m.timers.Dispatch(now)
	}
	return consumed
}

// Pending reports whether a complete line is waiting
func (m *Manager) Pending() bool {
	return m.input.IndexByte('\n') >= 0
}

// ProcessLine decodes and executes one command line. The status line is
// queued as output; the error is returned as well.
func (m *Manager) ProcessLine(line string) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	reply, err := m.router.Handle(line, core.GetTime())
	if err != nil {
		m.SendResponse("ERR " + err.Error() + "\n")
		core.DebugPrintln("[SEQ] " + line + ": " + err.Error())
		return err
	}
	m.SendResponse(reply + "\n")
	return nil
}

// SendResponse queues a response to be sent to the host. Responses that do
// not fit are dropped whole.
func (m *Manager) SendResponse(response string) {
	m.output.OutputString(response)
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	result := m.output.Result()
	if len(result) == 0 {
		return nil
	}

	output := make([]byte, len(result))
	copy(output, result)
	m.output.Reset()
	return output
}

// Snapshot appends the state of every touched channel to dst
func (m *Manager) Snapshot(dst []sequencer.ChannelStatus) []sequencer.ChannelStatus {
	if !m.initialized {
		return dst
	}
	return m.sched.Snapshot(dst)
}

// ActiveChannels returns the current active channel count
func (m *Manager) ActiveChannels() int {
	if !m.initialized {
		return m.config.ActiveChannels
	}
	return m.sched.ActiveChannels()
}

// IsPlaying reports whether any channel is playing
func (m *Manager) IsPlaying() bool {
	return m.initialized && m.sched.IsPlaying()
}

// Loaded lists the channels with a loaded sequence
func (m *Manager) Loaded() []int {
	if !m.initialized {
		return nil
	}
	return m.store.Loaded()
}

// Config returns the manager's configuration
func (m *Manager) Config() *config.Config {
	return m.config
}

// EmergencyStop stops every channel where it is
func (m *Manager) EmergencyStop() {
	m.Stop()
	m.SendResponse("ERR emergency stop\n")
}
