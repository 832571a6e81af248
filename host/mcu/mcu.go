// Package mcu talks to a servo controller over its serial command link
package mcu

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"servoseq/core"
	"servoseq/host/serial"
	"servoseq/sequencer/command"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("no reply from controller")
)

// MCU represents a connection to a servo controller. One goroutine consumes
// everything the controller sends: OK/ERR replies go to the pending Request,
// every other line goes to Lines.
type MCU struct {
	port    serial.Port
	cancel  context.CancelFunc
	lines   chan string
	readErr chan error

	mu     sync.Mutex
	waiter chan string // set while a Request waits for its reply

	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{}
}

// Connect connects to a controller via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	port.Flush()
	m.Attach(port)
	return nil
}

// Attach starts reading status lines from an already open port
func (m *MCU) Attach(port serial.Port) {
	ctx, cancel := context.WithCancel(context.Background())
	m.port = port
	m.cancel = cancel
	m.lines = make(chan string, 64)
	m.readErr = make(chan error, 1)
	m.connected = true

	chunks := make(chan []byte, 16)
	raw := make(chan string, 16)
	go func() {
		m.readErr <- serial.ReadLoop(ctx, port, chunks)
		close(chunks)
	}()
	go splitLines(ctx, chunks, raw)
	go m.dispatch(ctx, raw)
}

// dispatch hands each reply to the waiting Request, or to Lines when no
// Request is waiting
func (m *MCU) dispatch(ctx context.Context, raw <-chan string) {
	defer close(m.lines)
	for line := range raw {
		if isReply(line) {
			m.mu.Lock()
			w := m.waiter
			m.waiter = nil
			m.mu.Unlock()
			if w != nil {
				w <- line
				continue
			}
		}
		select {
		case m.lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

func isReply(line string) bool {
	return strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "ERR")
}

// splitLines turns read chunks into trimmed, non-empty lines
func splitLines(ctx context.Context, chunks <-chan []byte, lines chan<- string) {
	defer close(lines)
	var partial []byte
	for chunk := range chunks {
		partial = append(partial, chunk...)
		for {
			idx := bytes.IndexByte(partial, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimSpace(string(partial[:idx]))
			partial = partial[idx+1:]
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the connection
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	m.cancel()
	return m.port.Close()
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// Lines delivers every line not claimed as a Request reply. It is closed
// after Close or a read failure.
func (m *MCU) Lines() <-chan string {
	return m.lines
}

// Err returns the reader's error once the connection has failed
func (m *MCU) Err() error {
	select {
	case err := <-m.readErr:
		m.readErr <- err
		return err
	default:
		return nil
	}
}

// Send writes one command line. Lines that do not decode are refused
// locally instead of being sent.
func (m *MCU) Send(line string) error {
	if !m.connected {
		return ErrNotConnected
	}
	line = strings.TrimSpace(line)
	if _, err := command.Decode(line); err != nil {
		return err
	}
	if _, err := m.port.Write([]byte(line + "\n")); err != nil {
		return fault.Wrap(err, fmsg.With("write "+line), ftag.With(ftag.Internal))
	}
	return nil
}

// Request sends one command line and waits for its OK or ERR reply. Lines
// arriving meanwhile, such as DONE, still go to Lines. Only one Request may
// be in flight.
func (m *MCU) Request(line string, timeout time.Duration) (string, error) {
	w := make(chan string, 1)
	m.mu.Lock()
	m.waiter = w
	m.mu.Unlock()

	if err := m.Send(line); err != nil {
		m.release(w)
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-w:
		return reply, nil
	case <-timer.C:
		m.release(w)
		return "", ErrTimeout
	}
}

// release withdraws w if no reply claimed it yet
func (m *MCU) release(w chan string) {
	m.mu.Lock()
	if m.waiter == w {
		m.waiter = nil
	}
	m.mu.Unlock()
}

// SendFile sends every command line of a sequence file, waiting for each
// reply. Blank lines and lines starting with '#' are skipped. It stops at the
// first line the controller rejects and returns the replies so far.
func (m *MCU) SendFile(path string, timeout time.Duration) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open "+path), ftag.With(ftag.NotFound))
	}
	defer f.Close()

	var replies []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 8192)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		reply, err := m.Request(line, timeout)
		if err != nil {
			return replies, fault.Wrap(err, fmsg.With(path+" line "+core.Itoa(lineNo)))
		}
		replies = append(replies, reply)
		if strings.HasPrefix(reply, "ERR") {
			return replies, fault.New(path+" line "+core.Itoa(lineNo)+": "+reply, ftag.With(ftag.InvalidArgument))
		}
	}
	return replies, scanner.Err()
}
