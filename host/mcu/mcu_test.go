package mcu

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"servoseq/sequencer"
)

// loopPort answers every written line with a scripted reply
type loopPort struct {
	mu      sync.Mutex
	written []string
	reply   func(line string) string
	pending chan []byte
	closed  chan struct{}
}

func newLoopPort(reply func(string) string) *loopPort {
	return &loopPort{
		reply:   reply,
		pending: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (p *loopPort) Read(b []byte) (int, error) {
	select {
	case data := <-p.pending:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	case <-time.After(10 * time.Millisecond):
		return 0, io.EOF // read timeout
	}
}

func (p *loopPort) Write(b []byte) (int, error) {
	line := strings.TrimSpace(string(b))
	p.mu.Lock()
	p.written = append(p.written, line)
	p.mu.Unlock()
	if r := p.reply(line); r != "" {
		p.pending <- []byte(r)
	}
	return len(b), nil
}

func (p *loopPort) Close() error { close(p.closed); return nil }
func (p *loopPort) Flush() error { return nil }

func (p *loopPort) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func okReply(line string) string {
	kw, _, _ := strings.Cut(line, ":")
	if strings.HasSuffix(line, "INVALID") {
		return "ERR record 1: angle is not a number\n"
	}
	return "OK " + kw + "\n"
}

func TestRequest(t *testing.T) {
	port := newLoopPort(okReply)
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	reply, err := m.Request("MA:90", time.Second)
	if err != nil || reply != "OK MA" {
		t.Errorf("reply = %q, %v", reply, err)
	}
}

func TestSendRefusesMalformed(t *testing.T) {
	port := newLoopPort(okReply)
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	if err := m.Send("SA:1"); !errors.Is(err, sequencer.ErrDecode) {
		t.Errorf("err = %v", err)
	}
	if _, err := m.Request("SA:1", time.Second); !errors.Is(err, sequencer.ErrDecode) {
		t.Errorf("Request err = %v", err)
	}
	if len(port.lines()) != 0 {
		t.Error("malformed line was written")
	}
}

func TestRequestLeavesDoneOnLines(t *testing.T) {
	port := newLoopPort(func(line string) string {
		return "DONE 0\nOK " + line + "\n"
	})
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	reply, err := m.Request("STOP", time.Second)
	if err != nil || reply != "OK STOP" {
		t.Errorf("reply = %q, %v", reply, err)
	}
	select {
	case line := <-m.Lines():
		if line != "DONE 0" {
			t.Errorf("line = %q, want DONE 0", line)
		}
	case <-time.After(time.Second):
		t.Error("DONE line not delivered")
	}
}

func TestRequestNotStolenByReader(t *testing.T) {
	port := newLoopPort(okReply)
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	// A reader blocked on Lines must never see a Request's reply
	stolen := make(chan string, 16)
	go func() {
		for line := range m.Lines() {
			stolen <- line
		}
	}()

	for i := 0; i < 20; i++ {
		reply, err := m.Request("STOP", time.Second)
		if err != nil || reply != "OK STOP" {
			t.Fatalf("request %d: reply = %q, %v", i, reply, err)
		}
	}
	select {
	case line := <-stolen:
		t.Errorf("reader received reply %q", line)
	default:
	}

	// With no Request waiting, replies go to Lines
	m.Send("STOP")
	select {
	case line := <-stolen:
		if line != "OK STOP" {
			t.Errorf("line = %q", line)
		}
	case <-time.After(time.Second):
		t.Error("unsolicited reply not delivered")
	}
}

func TestRequestTimeout(t *testing.T) {
	port := newLoopPort(func(string) string { return "" })
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	if _, err := m.Request("STOP", 30*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v", err)
	}
}

func TestCloseWithUndrainedLines(t *testing.T) {
	port := newLoopPort(func(string) string {
		return strings.Repeat("DONE 1\n", 40)
	})
	m := NewMCU()
	m.Attach(port)

	// Nobody reads Lines: the buffers fill and the dispatcher blocks
	for i := 0; i < 3; i++ {
		m.Send("STOP")
	}
	time.Sleep(50 * time.Millisecond)
	m.Close()

	done := make(chan struct{})
	go func() {
		for range m.Lines() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Lines not closed after Close")
	}
}

func TestSendFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wave.seq")
	content := "# wave\nNUM_SERVOS:2\n\nLOAD_SEQ:0:0,90;500,120\nLOAD_SEQ:1:0,90;500,INVALID\nPLAY_LOADED\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	port := newLoopPort(okReply)
	m := NewMCU()
	m.Attach(port)
	defer m.Close()

	replies, err := m.SendFile(path, time.Second)
	if err == nil {
		t.Fatal("rejected line did not stop the file")
	}
	if len(replies) != 3 || !strings.HasPrefix(replies[2], "ERR") {
		t.Errorf("replies = %v", replies)
	}
	if got := port.lines(); len(got) != 3 {
		t.Errorf("sent %v, want 3 lines", got)
	}
}

func TestNotConnected(t *testing.T) {
	m := NewMCU()
	if err := m.Send("STOP"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close on unconnected = %v", err)
	}
}
