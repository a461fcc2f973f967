package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxFrameSize bounds a single framed message.
const MaxFrameSize = 64 << 20

// ErrClosed is returned by Send on an endpoint whose peer or self is closed.
var ErrClosed = errors.New("ipc: endpoint closed")

// Endpoint is one side of a session. Messages are delivered in send order,
// exactly once; Recv never exposes a partially received message.
type Endpoint interface {
	Send(env Envelope) error
	// Recv blocks until a full message arrives. It returns io.EOF once the
	// peer has closed and nothing is pending.
	Recv() (Envelope, error)
	Close() error
}

// Stream frames messages as a u32 little-endian length followed by the
// encoded payload over any byte stream.
type Stream struct {
	rwc     io.ReadWriteCloser
	inbound Direction

	wmu sync.Mutex
	rmu sync.Mutex
	hdr [4]byte
}

var _ Endpoint = (*Stream)(nil)

// NewStream wraps rwc. inbound is the direction of messages read from it.
func NewStream(rwc io.ReadWriteCloser, inbound Direction) *Stream {
	return &Stream{rwc: rwc, inbound: inbound}
}

// Pipe returns a connected in-process pair over net.Pipe.
func Pipe() (browser, engine *Stream) {
	a, b := net.Pipe()
	return NewStream(a, ToBrowser), NewStream(b, ToEngine)
}

// Send encodes env and writes it as one frame. Safe for concurrent use.
func (s *Stream) Send(env Envelope) error {
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if len(payload) > MaxFrameSize {
		return protocolErr("frame of %d bytes exceeds %d", len(payload), MaxFrameSize)
	}
	frame := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.rwc.Write(frame); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return fmt.Errorf("ipc: write frame: %w", err)
	}
	return nil
}

// Recv reads one frame and decodes it.
func (s *Stream) Recv() (Envelope, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if _, err := io.ReadFull(s.rwc, s.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return Envelope{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Envelope{}, protocolErr("truncated frame header")
		}
		return Envelope{}, fmt.Errorf("ipc: read frame header: %w", err)
	}
	n := binary.LittleEndian.Uint32(s.hdr[:])
	if n > MaxFrameSize {
		return Envelope{}, protocolErr("frame of %d bytes exceeds %d", n, MaxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(s.rwc, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Envelope{}, protocolErr("truncated frame: want %d bytes", n)
		}
		return Envelope{}, fmt.Errorf("ipc: read frame: %w", err)
	}
	return Decode(s.inbound, payload)
}

// Close closes the underlying stream.
func (s *Stream) Close() error {
	return s.rwc.Close()
}

// JoinIO combines a reader and a writer (such as a child's stdout and stdin)
// into one stream; Close closes both.
func JoinIO(r io.ReadCloser, w io.WriteCloser) io.ReadWriteCloser {
	return &joined{ReadCloser: r, w: w}
}

type joined struct {
	io.ReadCloser
	w io.WriteCloser
}

func (j *joined) Write(p []byte) (int, error) { return j.w.Write(p) }

func (j *joined) Close() error {
	return errors.Join(j.w.Close(), j.ReadCloser.Close())
}
