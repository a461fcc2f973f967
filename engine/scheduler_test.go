package engine

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/ipc"
	"github.com/ByLCY/tessera/script"
	"github.com/ByLCY/tessera/tracing"
)

func load(id uint64, html string, w, h uint32) ipc.Envelope {
	return ipc.Wrap(ipc.LoadDocument{RequestID: id, URL: "test://doc", HTML: html, Width: w, Height: h})
}

func messages(envs []ipc.Envelope) []ipc.Message {
	out := make([]ipc.Message, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Message)
	}
	return out
}

func TestLoadReportsDocumentReady(t *testing.T) {
	s := NewScheduler(nil)
	out := messages(s.Handle(context.Background(), load(1, "<title>T</title><div>Hi</div>", 100, 100)))
	require.Len(t, out, 1)
	ready, ok := out[0].(ipc.DocumentReady)
	require.True(t, ok, "got %T", out[0])
	assert.Equal(t, uint64(1), ready.RequestID)
	assert.GreaterOrEqual(t, ready.CommandCount, uint32(1))
	assert.Equal(t, "T", ready.Title)
	assert.Equal(t, StateReady, s.State())
}

func TestEmptyDocumentIsInvalidInput(t *testing.T) {
	s := NewScheduler(nil)
	out := messages(s.Handle(context.Background(), load(7, "", 100, 100)))
	require.Len(t, out, 1)
	logMsg, ok := out[0].(ipc.Log)
	require.True(t, ok, "got %T", out[0])
	assert.Equal(t, ipc.LevelError, logMsg.Level)
	assert.Contains(t, logMsg.Text, "request 7")
	assert.Contains(t, logMsg.Text, fault.ErrInvalidInput.Error())
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Document())
}

func TestFailedLoadKeepsOldDocument(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()
	s.Handle(ctx, load(1, "<p>first</p>", 50, 50))
	s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 1}))
	before := s.Document()

	out := messages(s.Handle(ctx, load(2, "", 50, 50)))
	require.IsType(t, ipc.Log{}, out[0])
	assert.Same(t, before, s.Document())
	assert.Equal(t, StateTicking, s.State())
	for _, m := range out {
		_, isReady := m.(ipc.DocumentReady)
		assert.False(t, isReady)
	}
}

func TestZeroViewportIsAccepted(t *testing.T) {
	s := NewScheduler(nil)
	out := messages(s.Handle(context.Background(), load(1, "<div>Hi</div>", 0, 0)))
	require.Len(t, out, 1)
	ready := out[0].(ipc.DocumentReady)
	assert.Equal(t, uint32(1), ready.CommandCount, "background only")
	assert.True(t, s.Document().Tree.IsEmpty())
}

func TestTickBeforeLoad(t *testing.T) {
	s := NewScheduler(nil)
	out := messages(s.Handle(context.Background(), ipc.Wrap(ipc.Tick{FrameIndex: 0})))
	require.Len(t, out, 1)
	logMsg := out[0].(ipc.Log)
	assert.Equal(t, ipc.LevelWarn, logMsg.Level)
	assert.Contains(t, logMsg.Text, "scheduler state")
	assert.Equal(t, StateIdle, s.State())
}

func TestTickProducesFrames(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()
	s.Handle(ctx, load(1, "<div>Hi</div>", 100, 100))

	out := messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 0})))
	require.Len(t, out, 1)
	fr := out[0].(ipc.FrameReady)
	assert.Equal(t, uint64(0), fr.FrameIndex)
	assert.Equal(t, uint32(100), fr.List.Width)
	assert.Equal(t, StateTicking, s.State())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(0), latest.Index)

	stale := messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 0})))
	require.IsType(t, ipc.Log{}, stale[0])

	s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 5}))
	latest, _ = s.Latest()
	assert.Equal(t, uint64(5), latest.Index)
}

func TestV1SessionHasNoFrameReady(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()
	env := load(1, "<title>T</title><p>x</p>", 40, 40)
	env.Version = 1
	out := s.Handle(ctx, env)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].Version)
	assert.Empty(t, out[0].Message.(ipc.DocumentReady).Title)

	assert.Empty(t, s.Handle(ctx, ipc.Envelope{Version: 1, Message: ipc.Tick{FrameIndex: 1}}))
	_, ok := s.Latest()
	assert.True(t, ok)
}

func TestReloadWhileTicking(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()
	s.Handle(ctx, load(1, "<p>a</p>", 50, 50))
	s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 3}))

	out := messages(s.Handle(ctx, load(2, "<p>b</p><p>c</p>", 50, 50)))
	require.IsType(t, ipc.DocumentReady{}, out[0])
	assert.Equal(t, uint64(2), s.Document().RequestID)
	_, ok := s.Latest()
	assert.False(t, ok, "frames of the old document are discarded")

	out = messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 4})))
	require.IsType(t, ipc.FrameReady{}, out[0])
}

func TestFrameIndexNotReusedAfterReload(t *testing.T) {
	s := NewScheduler(nil)
	ctx := context.Background()
	s.Handle(ctx, load(1, "<p>a</p>", 50, 50))
	out := messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 5})))
	require.IsType(t, ipc.FrameReady{}, out[0])

	s.Handle(ctx, load(2, "<p>b</p>", 50, 50))
	for _, index := range []uint64{0, 5} {
		out = messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: index})))
		require.Len(t, out, 1)
		logMsg, ok := out[0].(ipc.Log)
		require.True(t, ok, "tick %d: got %T", index, out[0])
		assert.Equal(t, ipc.LevelWarn, logMsg.Level)
		assert.Contains(t, logMsg.Text, fault.ErrSchedulerState.Error())
	}
	_, ok := s.Latest()
	assert.False(t, ok)

	out = messages(s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 6})))
	require.IsType(t, ipc.FrameReady{}, out[0])
	assert.Equal(t, uint64(6), out[0].(ipc.FrameReady).FrameIndex)
}

func TestScriptsAreReported(t *testing.T) {
	host := &script.Stub{}
	s := NewScheduler(&Pipeline{Scripts: host})
	out := messages(s.Handle(context.Background(), load(1, "<script>x()</script><p>y</p>", 50, 50)))
	require.Len(t, out, 2)
	logMsg := out[0].(ipc.Log)
	assert.Equal(t, ipc.LevelWarn, logMsg.Level)
	assert.Contains(t, logMsg.Text, "unsupported")
	require.IsType(t, ipc.DocumentReady{}, out[1])
	assert.Len(t, host.Seen, 1)
}

func TestUnexpectedMessage(t *testing.T) {
	s := NewScheduler(nil)
	out := messages(s.Handle(context.Background(), ipc.Wrap(ipc.AckShutdown{})))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].(ipc.Log).Text, "scheduler state")
}

// Shutdown 在任意状态下都恰好产生一个 AckShutdown，之后不再处理消息。
func TestShutdownFromAnyState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewScheduler(nil)
		ctx := context.Background()
		steps := rapid.IntRange(0, 6).Draw(t, "steps")
		frame := uint64(0)
		for range steps {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				s.Handle(ctx, load(1, rapid.SampledFrom([]string{"", "<p>x</p>", "<div>Hi</div>"}).Draw(t, "html"), 30, 30))
			case 1:
				s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: frame}))
				frame++
			default:
				s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 0}))
			}
		}
		out := messages(s.Handle(ctx, ipc.Wrap(ipc.Shutdown{})))
		if len(out) != 1 {
			t.Fatalf("want one reply, got %d", len(out))
		}
		if _, ok := out[0].(ipc.AckShutdown); !ok {
			t.Fatalf("want AckShutdown, got %T", out[0])
		}
		if s.State() != StateStopped {
			t.Fatalf("state %s", s.State())
		}
		if more := s.Handle(ctx, ipc.Wrap(ipc.Shutdown{})); len(more) != 0 {
			t.Fatalf("stopped scheduler replied %d messages", len(more))
		}
	})
}

func TestPipelineSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	s := NewScheduler(&Pipeline{Tracer: provider.Tracer("test")})
	ctx := context.Background()
	s.Handle(ctx, load(1, "<div>Hi</div>", 100, 100))
	s.Handle(ctx, ipc.Wrap(ipc.Tick{FrameIndex: 1}))

	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	for _, want := range []string{tracing.SpanHandle, tracing.SpanLoad, tracing.SpanParse, tracing.SpanLayout, tracing.SpanPaint, tracing.SpanRelayout} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestServeSession(t *testing.T) {
	browser, engine := ipc.NewLoopback(8)
	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), engine, NewScheduler(nil)) }()

	require.NoError(t, browser.Send(load(1, "<div>Hi</div>", 100, 100)))
	env, err := browser.Recv()
	require.NoError(t, err)
	require.IsType(t, ipc.DocumentReady{}, env.Message)

	require.NoError(t, browser.Send(ipc.Wrap(ipc.Tick{FrameIndex: 0})))
	env, err = browser.Recv()
	require.NoError(t, err)
	require.IsType(t, ipc.FrameReady{}, env.Message)

	require.NoError(t, browser.Send(ipc.Wrap(ipc.Shutdown{})))
	env, err = browser.Recv()
	require.NoError(t, err)
	require.IsType(t, ipc.AckShutdown{}, env.Message)
	require.NoError(t, <-done)
}

// rawEndpoint 返回预置的接收结果，用于注入协议错误。
type rawEndpoint struct {
	recv []error
	sent []ipc.Envelope
}

func (r *rawEndpoint) Send(env ipc.Envelope) error {
	r.sent = append(r.sent, env)
	return nil
}

func (r *rawEndpoint) Recv() (ipc.Envelope, error) {
	if len(r.recv) == 0 {
		return ipc.Envelope{}, io.EOF
	}
	err := r.recv[0]
	r.recv = r.recv[1:]
	return ipc.Envelope{}, err
}

func (r *rawEndpoint) Close() error { return nil }

func TestServeProtocolErrorTearsDown(t *testing.T) {
	_, decodeErr := ipc.Decode(ipc.ToEngine, []byte{9, 0, 0, 0, 1})
	require.ErrorIs(t, decodeErr, fault.ErrProtocol)

	ep := &rawEndpoint{recv: []error{decodeErr}}
	err := Serve(context.Background(), ep, NewScheduler(nil))
	require.ErrorIs(t, err, fault.ErrProtocol)
	require.Len(t, ep.sent, 2)
	logMsg := ep.sent[0].Message.(ipc.Log)
	assert.Equal(t, ipc.LevelError, logMsg.Level)
	assert.True(t, strings.Contains(logMsg.Text, "schema version"))
	assert.Equal(t, ipc.AckShutdown{}, ep.sent[1].Message)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Serve(ctx, &rawEndpoint{}, NewScheduler(nil))
	require.ErrorIs(t, err, context.Canceled)
}
