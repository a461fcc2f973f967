package ipc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fault"
)

type nopCloser struct{ io.ReadWriter }

func (nopCloser) Close() error { return nil }

func TestPipeOrdering(t *testing.T) {
	browser, engine := Pipe()
	defer browser.Close()
	defer engine.Close()

	sent := []Message{
		LoadDocument{RequestID: 1, HTML: "<div>Hi</div>", Width: 100, Height: 100},
		Tick{FrameIndex: 0},
		Tick{FrameIndex: 1},
		Shutdown{},
	}
	errc := make(chan error, 1)
	go func() {
		for _, m := range sent {
			if err := browser.Send(Wrap(m)); err != nil {
				errc <- err
				return
			}
		}
		errc <- nil
	}()
	for _, want := range sent {
		env, err := engine.Recv()
		require.NoError(t, err)
		assert.Equal(t, want, env.Message)
	}
	require.NoError(t, <-errc)
}

func TestStreamCarriesFrames(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(nopCloser{&buf}, ToBrowser)
	list := &display.List{Width: 4, Height: 4, Commands: []display.Command{
		display.FillRect{Rect: display.Rect{Width: 4, Height: 4}, Color: display.Color{R: 1, A: 255}},
	}}
	require.NoError(t, s.Send(Wrap(FrameReady{FrameIndex: 9, List: list})))
	require.NoError(t, s.Send(Wrap(AckShutdown{})))

	env, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, FrameReady{FrameIndex: 9, List: list}, env.Message)
	env, err = s.Recv()
	require.NoError(t, err)
	assert.Equal(t, AckShutdown{}, env.Message)
	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	hdr := binary.LittleEndian.AppendUint32(nil, MaxFrameSize+1)
	buf.Write(hdr)
	_, err := NewStream(nopCloser{&buf}, ToEngine).Recv()
	require.ErrorIs(t, err, fault.ErrProtocol)
}

func TestStreamTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(binary.LittleEndian.AppendUint32(nil, 10))
	buf.Write([]byte{1, 0, 0})
	_, err := NewStream(nopCloser{&buf}, ToEngine).Recv()
	require.ErrorIs(t, err, fault.ErrProtocol)

	buf.Reset()
	buf.Write([]byte{1, 0})
	_, err = NewStream(nopCloser{&buf}, ToEngine).Recv()
	require.ErrorIs(t, err, fault.ErrProtocol)
}

func TestLoopbackDrainsBeforeEOF(t *testing.T) {
	browser, engine := NewLoopback(4)
	require.NoError(t, browser.Send(Wrap(Tick{FrameIndex: 1})))
	require.NoError(t, browser.Send(Wrap(Shutdown{})))
	require.NoError(t, browser.Close())

	env, err := engine.Recv()
	require.NoError(t, err)
	assert.Equal(t, Tick{FrameIndex: 1}, env.Message)
	env, err = engine.Recv()
	require.NoError(t, err)
	assert.Equal(t, Shutdown{}, env.Message)
	_, err = engine.Recv()
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, engine.Send(Wrap(AckShutdown{})), ErrClosed)
}

func TestLoopbackRejectsUnencodable(t *testing.T) {
	browser, engine := NewLoopback(1)
	defer browser.Close()
	err := engine.Send(Envelope{Version: 1, Message: FrameReady{}})
	require.ErrorIs(t, err, fault.ErrProtocol)
}
