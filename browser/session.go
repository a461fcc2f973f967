// Package browser is the orchestrator side of a session: it drives a
// content engine over an ipc.Endpoint, keeps completed frames and runs the
// windowed loop.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/ipc"
	"github.com/ByLCY/tessera/tracing"
)

// Options configures a session.
type Options struct {
	// Version is the schema version spoken by this side; 0 means ipc.CurrentVersion.
	Version  uint32
	FrameTTL time.Duration
	Logger   *slog.Logger
	Tracer   trace.Tracer
	// WrapEndpoint, when set, decorates the transport (e.g. a journal recorder).
	WrapEndpoint func(id uuid.UUID, ep ipc.Endpoint) ipc.Endpoint
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

type inbound struct {
	env ipc.Envelope
	err error
}

// Session is one orchestrator↔engine conversation. Requests are issued one
// at a time; Load, Tick and Shutdown must not be called concurrently.
type Session struct {
	ID uuid.UUID

	ep      ipc.Endpoint
	version uint32
	frames  *FrameStore
	log     *slog.Logger
	tracer  trace.Tracer

	inbox     chan inbound
	done      chan struct{}
	nextID    atomic.Uint64
	wait      func() error
	closeOnce sync.Once
	closeErr  error
}

// NewSession starts reading from ep. wait, if non-nil, is called by Close to
// reap the engine side.
func NewSession(ep ipc.Endpoint, wait func() error, opts Options) *Session {
	version := opts.Version
	if version == 0 {
		version = ipc.CurrentVersion
	}
	id := uuid.New()
	if opts.WrapEndpoint != nil {
		ep = opts.WrapEndpoint(id, ep)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	s := &Session{
		ID:      id,
		ep:      ep,
		version: version,
		frames:  NewFrameStore(opts.FrameTTL),
		log:     opts.logger().With("session", id.String()),
		tracer:  tracer,
		inbox:   make(chan inbound, 16),
		done:    make(chan struct{}),
		wait:    wait,
	}
	go s.readLoop()
	return s
}

// StartInProcess runs an engine goroutine over an in-process pipe.
func StartInProcess(ctx context.Context, pipeline *engine.Pipeline, opts Options) *Session {
	browserEnd, engineEnd := ipc.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := engine.Serve(ctx, engineEnd, engine.NewScheduler(pipeline))
		_ = engineEnd.Close()
		errc <- err
	}()
	return NewSession(browserEnd, func() error { return <-errc }, opts)
}

// StartProcess spawns "<exe> content <args...>" and speaks to it over its
// stdin/stdout. The child's stderr is passed through.
func StartProcess(ctx context.Context, exe string, args []string, opts Options) (*Session, error) {
	cmd := exec.CommandContext(ctx, exe, append([]string{"content"}, args...)...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("browser: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("browser: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("browser: start content process: %w", err)
	}
	opts.logger().Debug("content process started", "pid", cmd.Process.Pid, "exe", exe)
	ep := ipc.NewStream(ipc.JoinIO(stdout, stdin), ipc.ToBrowser)
	return NewSession(ep, cmd.Wait, opts), nil
}

func (s *Session) readLoop() {
	defer close(s.inbox)
	for {
		env, err := s.ep.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		select {
		case s.inbox <- inbound{env: env, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Version is the schema version this session speaks.
func (s *Session) Version() uint32 { return s.version }

// Frames exposes the frame store.
func (s *Session) Frames() *FrameStore { return s.frames }

// Latest returns the most recent completed frame.
func (s *Session) Latest() (engine.Frame, bool) { return s.frames.Latest() }

func (s *Session) send(m ipc.Message) error {
	return s.ep.Send(ipc.Envelope{Version: s.version, Message: m})
}

// await consumes replies until match reports done. Logs not claimed by
// match are forwarded to the session logger.
func (s *Session) await(ctx context.Context, match func(ipc.Message) (bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-s.inbox:
			if !ok {
				return fmt.Errorf("browser: engine closed the session: %w", ipc.ErrClosed)
			}
			if in.err != nil {
				return fmt.Errorf("browser: receive: %w", in.err)
			}
			done, err := match(in.env.Message)
			if err != nil || done {
				return err
			}
			if l, isLog := in.env.Message.(ipc.Log); isLog {
				s.forwardLog(l)
			}
		}
	}
}

func (s *Session) forwardLog(l ipc.Log) {
	level := slog.LevelDebug
	switch l.Level {
	case ipc.LevelInfo:
		level = slog.LevelInfo
	case ipc.LevelWarn:
		level = slog.LevelWarn
	case ipc.LevelError:
		level = slog.LevelError
	}
	s.log.Log(context.Background(), level, "engine: "+l.Text)
}

// classify maps an engine Log back to the error class named in its text.
func classify(text string) error {
	for _, sentinel := range []error{fault.ErrInvalidInput, fault.ErrInvalidArgument, fault.ErrSchedulerState, fault.ErrProtocol} {
		if strings.Contains(text, sentinel.Error()) {
			return fmt.Errorf("engine: %s: %w", strings.TrimSuffix(text, ": "+sentinel.Error()), sentinel)
		}
	}
	return fmt.Errorf("engine: %s", text)
}

// refersTo reports whether an engine log is about "<word> <n>".
func refersTo(text, word string, n uint64) bool {
	rest, ok := strings.CutPrefix(text, fmt.Sprintf("%s %d", word, n))
	return ok && (rest == "" || rest[0] == ':' || rest[0] == ' ')
}

// LoadRequest describes a document to load.
type LoadRequest struct {
	URL    string
	HTML   []byte
	Width  uint32
	Height uint32
}

// Load sends LoadDocument and waits for DocumentReady. An error Log from the
// engine fails the call; the engine's previous document stays current.
func (s *Session) Load(ctx context.Context, req LoadRequest) (ipc.DocumentReady, error) {
	id := s.nextID.Add(1)
	ctx, span := s.tracer.Start(ctx, tracing.SpanSession+"load", trace.WithAttributes(
		attribute.String(tracing.AttrSessionID, s.ID.String()),
		attribute.Int64(tracing.AttrRequestID, int64(id)),
	))
	defer span.End()

	msg := ipc.LoadDocument{RequestID: id, URL: req.URL, HTML: strings.ToValidUTF8(string(req.HTML), "\uFFFD"), Width: req.Width, Height: req.Height}
	if err := s.send(msg); err != nil {
		tracing.RecordError(span, err)
		return ipc.DocumentReady{}, fmt.Errorf("browser: send load: %w", err)
	}
	var ready ipc.DocumentReady
	err := s.await(ctx, func(m ipc.Message) (bool, error) {
		switch m := m.(type) {
		case ipc.DocumentReady:
			if m.RequestID != id {
				return false, nil
			}
			ready = m
			return true, nil
		case ipc.Log:
			if m.Level == ipc.LevelError && refersTo(m.Text, "request", id) {
				return true, classify(m.Text)
			}
		case ipc.AckShutdown:
			return true, fmt.Errorf("browser: engine shut down during load: %w", ipc.ErrClosed)
		}
		return false, nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return ipc.DocumentReady{}, err
	}
	s.frames.Reset()
	s.log.Debug("document ready", "request_id", id, "commands", ready.CommandCount, "title", ready.Title)
	return ready, nil
}

// Tick advances the engine to frame. At schema version 2 it waits for the
// frame and stores it; at version 1 the engine sends no frame and Tick
// returns nil.
func (s *Session) Tick(ctx context.Context, frame uint64) (*engine.Frame, error) {
	if err := s.send(ipc.Tick{FrameIndex: frame}); err != nil {
		return nil, fmt.Errorf("browser: send tick: %w", err)
	}
	if s.version < 2 {
		return nil, nil
	}
	var out *engine.Frame
	err := s.await(ctx, func(m ipc.Message) (bool, error) {
		switch m := m.(type) {
		case ipc.FrameReady:
			if m.FrameIndex != frame {
				return false, nil
			}
			out = &engine.Frame{Index: m.FrameIndex, List: m.List}
			return true, nil
		case ipc.Log:
			if m.Level >= ipc.LevelWarn && refersTo(m.Text, "tick", frame) {
				return true, classify(m.Text)
			}
		case ipc.AckShutdown:
			return true, fmt.Errorf("browser: engine shut down during tick: %w", ipc.ErrClosed)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if !s.frames.Put(*out) {
		return nil, fmt.Errorf("browser: frame %d already used in this session: %w", frame, fault.ErrSchedulerState)
	}
	return out, nil
}

// Shutdown sends Shutdown, waits for AckShutdown and closes the session.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.send(ipc.Shutdown{}); err != nil {
		return errors.Join(fmt.Errorf("browser: send shutdown: %w", err), s.Close())
	}
	err := s.await(ctx, func(m ipc.Message) (bool, error) {
		_, ok := m.(ipc.AckShutdown)
		return ok, nil
	})
	return errors.Join(err, s.Close())
}

// Close tears down the transport and reaps the engine side.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		err := s.ep.Close()
		if s.wait != nil {
			if werr := s.wait(); werr != nil && !errors.Is(werr, context.Canceled) {
				err = errors.Join(err, werr)
			}
		}
		s.closeErr = err
	})
	return s.closeErr
}
