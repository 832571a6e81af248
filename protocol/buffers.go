package protocol

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity.
// One slot is kept free to tell a full buffer from an empty one.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer and returns how many bytes fit
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			// Buffer empty
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IndexByte returns the offset of the first c among the buffered bytes, or -1
func (f *FifoBuffer) IndexByte(c byte) int {
	n := f.Available()
	for i := 0; i < n; i++ {
		if f.buf[(f.read+i)%f.size] == c {
			return i
		}
	}
	return -1
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}

// LineStatus describes the outcome of NextLine
type LineStatus uint8

const (
	LineNone     LineStatus = iota // no complete line buffered yet
	LineReady                      // a line was copied out
	LineOverflow                   // a line longer than the destination was dropped
)

// LineReader splits a FifoBuffer into newline-terminated lines of bounded
// length. Bytes belonging to an over-long line are dropped up to and
// including its newline.
type LineReader struct {
	fifo       *FifoBuffer
	line       []byte
	discarding bool
}

// NewLineReader creates a reader that yields lines of at most maxLine bytes
func NewLineReader(fifo *FifoBuffer, maxLine int) *LineReader {
	return &LineReader{
		fifo: fifo,
		line: make([]byte, maxLine),
	}
}

// NextLine extracts the next complete line without its terminator. Carriage
// returns and surrounding spaces are trimmed. The returned slice is only
// valid until the next call.
func (r *LineReader) NextLine() ([]byte, LineStatus) {
	idx := r.fifo.IndexByte('\n')
	if idx < 0 {
		// No terminator: if the buffer cannot take more bytes the current
		// line can never complete, so drop what we have.
		if r.fifo.Free() == 0 || (r.fifo.Available() > len(r.line)) {
			r.fifo.Reset()
			if !r.discarding {
				r.discarding = true
				return nil, LineOverflow
			}
		}
		return nil, LineNone
	}

	if r.discarding {
		r.fifo.Pop(idx + 1)
		r.discarding = false
		return r.NextLine()
	}

	if idx > len(r.line) {
		r.fifo.Pop(idx + 1)
		return nil, LineOverflow
	}

	n := r.fifo.Read(r.line[:idx])
	r.fifo.Pop(1) // newline
	return trimLine(r.line[:n]), LineReady
}

// Discarding reports whether the reader is dropping the tail of an over-long line
func (r *LineReader) Discarding() bool {
	return r.discarding
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// ScratchOutput implements a fixed-size output buffer for status text
type ScratchOutput struct {
	buf     []byte
	pos     int
	dropped int
}

// NewScratchOutput creates a new ScratchOutput holding at most size bytes
func NewScratchOutput(size int) *ScratchOutput {
	return &ScratchOutput{buf: make([]byte, size)}
}

// Output appends data if it fits entirely; partial messages are never queued.
// Returns false when the message was dropped.
func (s *ScratchOutput) Output(data []byte) bool {
	if len(data) > len(s.buf)-s.pos {
		s.dropped++
		return false
	}
	s.pos += copy(s.buf[s.pos:], data)
	return true
}

// OutputString is Output for strings
func (s *ScratchOutput) OutputString(data string) bool {
	if len(data) > len(s.buf)-s.pos {
		s.dropped++
		return false
	}
	s.pos += copy(s.buf[s.pos:], data)
	return true
}

// CurPosition returns the current write position
func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

// Dropped returns how many messages did not fit since the last Reset
func (s *ScratchOutput) Dropped() int {
	return s.dropped
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.dropped = 0
}
