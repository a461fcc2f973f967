package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/tessera/ipc"
)

// Recorder is an ipc.Endpoint that journals every envelope it carries.
// Outgoing envelopes are written before they are sent so a reply can never
// precede its request in sequence order. Journal failures are logged and do
// not break the session.
type Recorder struct {
	inner ipc.Endpoint
	j     *Journal
	id    uuid.UUID
	log   *slog.Logger

	mu  sync.Mutex
	seq int64
}

// NewRecorder registers session id in j and wraps ep.
func NewRecorder(j *Journal, id uuid.UUID, version uint32, ep ipc.Endpoint, log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := j.BeginSession(context.Background(), id, version, time.Now()); err != nil {
		return nil, err
	}
	return &Recorder{inner: ep, j: j, id: id, log: log.With("journal_session", id.String())}, nil
}

// Wrap adapts the journal to browser.Options.WrapEndpoint. If the session
// cannot be registered the endpoint is returned unwrapped.
func (j *Journal) Wrap(version uint32, log *slog.Logger) func(uuid.UUID, ipc.Endpoint) ipc.Endpoint {
	return func(id uuid.UUID, ep ipc.Endpoint) ipc.Endpoint {
		r, err := NewRecorder(j, id, version, ep, log)
		if err != nil {
			if log != nil {
				log.Warn("journal disabled for session", "session", id.String(), "error", err)
			}
			return ep
		}
		return r
	}
}

// Send implements ipc.Endpoint.
func (r *Recorder) Send(env ipc.Envelope) error {
	r.record(env)
	return r.inner.Send(env)
}

// Recv implements ipc.Endpoint.
func (r *Recorder) Recv() (ipc.Envelope, error) {
	env, err := r.inner.Recv()
	if err == nil {
		r.record(env)
	}
	return env, err
}

// Close implements ipc.Endpoint.
func (r *Recorder) Close() error { return r.inner.Close() }

func (r *Recorder) record(env ipc.Envelope) {
	payload, err := ipc.Encode(env)
	if err != nil {
		r.log.Warn("journal: encode failed", "message", ipc.Name(env.Message), "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rec := Record{Seq: r.seq, Direction: env.Message.Direction(), Name: ipc.Name(env.Message), Payload: payload}
	if err := r.j.Append(context.Background(), r.id, rec); err != nil {
		r.log.Warn("journal: append failed", "seq", rec.Seq, "error", err)
	}
}
