package ipc

import (
	"io"
	"sync"
)

// DefaultLoopbackDepth is the per-direction queue capacity of NewLoopback.
const DefaultLoopbackDepth = 64

// queue is one direction of a loopback pair; data is never closed so that a
// racing Send cannot panic, closed signals shutdown instead.
type queue struct {
	data   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newQueue(depth int) *queue {
	return &queue{data: make(chan []byte, depth), closed: make(chan struct{})}
}

func (q *queue) close() { q.once.Do(func() { close(q.closed) }) }

// Loopback is an in-memory endpoint. Every message is still encoded and
// decoded so codec errors surface exactly as they would over a Stream.
type Loopback struct {
	out     *queue
	in      *queue
	inbound Direction
}

var _ Endpoint = (*Loopback)(nil)

// NewLoopback returns a connected pair whose queues hold depth messages each.
// Send blocks while the peer's queue is full.
func NewLoopback(depth int) (browser, engine *Loopback) {
	if depth <= 0 {
		depth = DefaultLoopbackDepth
	}
	toEngine, toBrowser := newQueue(depth), newQueue(depth)
	browser = &Loopback{out: toEngine, in: toBrowser, inbound: ToBrowser}
	engine = &Loopback{out: toBrowser, in: toEngine, inbound: ToEngine}
	return browser, engine
}

func (l *Loopback) Send(env Envelope) error {
	b, err := Encode(env)
	if err != nil {
		return err
	}
	select {
	case <-l.out.closed:
		return ErrClosed
	default:
	}
	select {
	case l.out.data <- b:
		return nil
	case <-l.out.closed:
		return ErrClosed
	}
}

// Recv drains pending messages before reporting io.EOF.
func (l *Loopback) Recv() (Envelope, error) {
	select {
	case b := <-l.in.data:
		return Decode(l.inbound, b)
	default:
	}
	select {
	case b := <-l.in.data:
		return Decode(l.inbound, b)
	case <-l.in.closed:
		select {
		case b := <-l.in.data:
			return Decode(l.inbound, b)
		default:
			return Envelope{}, io.EOF
		}
	}
}

// Close shuts both directions; the peer still drains what was queued.
func (l *Loopback) Close() error {
	l.out.close()
	l.in.close()
	return nil
}
