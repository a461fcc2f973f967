package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/ipc"
	"github.com/ByLCY/tessera/layout"
	"github.com/ByLCY/tessera/script"
	"github.com/ByLCY/tessera/tracing"
)

// State is the scheduler's lifecycle position.
type State uint8

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateTicking
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateTicking:
		return "ticking"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Frame is the display list associated with one tick.
type Frame struct {
	Index uint64
	List  *display.List
}

// Scheduler is the content-side state machine. It owns the pipeline's
// retained document and is not safe for concurrent use.
type Scheduler struct {
	pipeline *Pipeline
	state    State
	doc      *Document
	frame    *Frame

	// 帧序号在整个会话内单调递增，重新加载文档也不重置
	lastIndex uint64
	ticked    bool
}

// NewScheduler returns an idle scheduler over p. A nil p uses the zero Pipeline.
func NewScheduler(p *Pipeline) *Scheduler {
	if p == nil {
		p = &Pipeline{}
	}
	return &Scheduler{pipeline: p}
}

func (s *Scheduler) State() State { return s.state }

// Document returns the authoritative document, or nil before the first load.
func (s *Scheduler) Document() *Document { return s.doc }

// Latest returns the most recent completed frame.
func (s *Scheduler) Latest() (Frame, bool) {
	if s.frame == nil {
		return Frame{}, false
	}
	return *s.frame, true
}

func (s *Scheduler) logger() *slog.Logger { return s.pipeline.logger() }

// Handle processes one message and returns the replies to send, encoded at
// the request's schema version. After Shutdown it returns nothing.
func (s *Scheduler) Handle(ctx context.Context, env ipc.Envelope) []ipc.Envelope {
	if s.state == StateStopped {
		s.logger().Debug("message after shutdown dropped", "message", ipc.Name(env.Message))
		return nil
	}
	ctx, span := s.pipeline.tracer().Start(ctx, tracing.SpanHandle, trace.WithAttributes(
		attribute.String(tracing.AttrMessageType, ipc.Name(env.Message)),
		attribute.Int(tracing.AttrSchema, int(env.Version)),
		attribute.String(tracing.AttrState, s.state.String()),
	))
	defer span.End()

	version := env.Version
	if version < ipc.MinVersion || version > ipc.CurrentVersion {
		version = ipc.CurrentVersion
	}
	reply := func(msgs ...ipc.Message) []ipc.Envelope {
		out := make([]ipc.Envelope, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, ipc.Envelope{Version: version, Message: m})
		}
		return out
	}

	switch m := env.Message.(type) {
	case ipc.LoadDocument:
		return reply(s.load(ctx, m, version)...)
	case ipc.Tick:
		return reply(s.tick(ctx, m, version)...)
	case ipc.Shutdown:
		s.transition(StateShuttingDown)
		s.transition(StateStopped)
		return reply(ipc.AckShutdown{})
	default:
		err := fmt.Errorf("%s not accepted by the engine: %w", ipc.Name(env.Message), fault.ErrSchedulerState)
		tracing.RecordError(span, err)
		return reply(logMessage(ipc.LevelWarn, err))
	}
}

func (s *Scheduler) load(ctx context.Context, m ipc.LoadDocument, version uint32) []ipc.Message {
	prev := s.state
	s.transition(StateLoading)
	doc, err := s.pipeline.Load(ctx, LoadRequest{
		RequestID: m.RequestID,
		URL:       m.URL,
		HTML:      []byte(m.HTML),
		Viewport:  layout.Viewport{Width: int(m.Width), Height: int(m.Height)},
	})
	if err != nil {
		// 旧文档保持有效
		s.transition(prev)
		s.logger().Warn("load failed", "request_id", m.RequestID, "kind", fault.Kind(err), "error", err)
		return []ipc.Message{logMessage(ipc.LevelError, err)}
	}

	s.doc = doc
	s.frame = nil
	s.transition(StateReady)

	var out []ipc.Message
	if doc.ScriptErr != nil {
		level := ipc.LevelWarn
		if !errors.Is(doc.ScriptErr, script.ErrUnsupported) {
			level = ipc.LevelError
		}
		out = append(out, logMessage(level, fmt.Errorf("request %d: %w", m.RequestID, doc.ScriptErr)))
	}
	ready := ipc.DocumentReady{RequestID: m.RequestID, CommandCount: uint32(doc.List.Len())}
	if version >= 2 {
		ready.Title = doc.Title
	}
	s.logger().Info("document ready",
		"request_id", m.RequestID,
		"commands", ready.CommandCount,
		"diagnostics", len(doc.Diagnostics),
	)
	return append(out, ready)
}

func (s *Scheduler) tick(ctx context.Context, m ipc.Tick, version uint32) []ipc.Message {
	if s.doc == nil {
		err := fmt.Errorf("tick %d before any document: %w", m.FrameIndex, fault.ErrSchedulerState)
		return []ipc.Message{logMessage(ipc.LevelWarn, err)}
	}
	if s.ticked && m.FrameIndex <= s.lastIndex {
		err := fmt.Errorf("tick %d not after frame %d: %w", m.FrameIndex, s.lastIndex, fault.ErrSchedulerState)
		return []ipc.Message{logMessage(ipc.LevelWarn, err)}
	}

	list, err := s.pipeline.Relayout(ctx, s.doc, m.FrameIndex)
	if err != nil {
		s.logger().Error("relayout failed", "frame", m.FrameIndex, "error", err)
		return []ipc.Message{logMessage(ipc.LevelError, fmt.Errorf("tick %d: %w", m.FrameIndex, err))}
	}
	s.frame = &Frame{Index: m.FrameIndex, List: list}
	s.lastIndex, s.ticked = m.FrameIndex, true
	s.transition(StateTicking)
	if version < 2 {
		return nil
	}
	return []ipc.Message{ipc.FrameReady{FrameIndex: m.FrameIndex, List: list}}
}

func (s *Scheduler) transition(next State) {
	if s.state == next {
		return
	}
	s.logger().Debug("scheduler transition", "from", s.state, "to", next)
	s.state = next
}

func logMessage(level ipc.Level, err error) ipc.Log {
	return ipc.Log{Level: level, Text: strings.ToValidUTF8(err.Error(), "\uFFFD")}
}
