package ipc

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fault"
)

// Encode serializes env at env.Version. Messages or fields that the version
// cannot carry are rejected rather than dropped.
func Encode(env Envelope) ([]byte, error) {
	if err := checkVersion(env.Version); err != nil {
		return nil, err
	}
	m := env.Message
	if m == nil {
		return nil, protocolErr("nil message")
	}
	if m.Since() > env.Version {
		return nil, protocolErr("%s requires version %d, envelope is %d", Name(m), m.Since(), env.Version)
	}

	w := &writer{buf: make([]byte, 0, 64)}
	w.u32(env.Version)
	w.u8(m.Tag())
	switch m := m.(type) {
	case LoadDocument:
		w.u64(m.RequestID)
		w.str(m.URL)
		w.str(m.HTML)
		w.u32(m.Width)
		w.u32(m.Height)
	case Tick:
		w.u64(m.FrameIndex)
	case Shutdown, AckShutdown:
	case DocumentReady:
		w.u64(m.RequestID)
		w.u32(m.CommandCount)
		if env.Version >= 2 {
			w.str(m.Title)
		} else if m.Title != "" {
			return nil, protocolErr("DocumentReady.title requires version 2")
		}
	case Log:
		w.u8(uint8(m.Level))
		w.str(m.Text)
	case FrameReady:
		w.u64(m.FrameIndex)
		if err := w.list(m.List); err != nil {
			return nil, err
		}
	default:
		return nil, protocolErr("unsupported message %T", m)
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Decode parses one message travelling in dir. Versions outside
// [MinVersion, CurrentVersion], tags unknown at the message's version,
// truncated input, trailing bytes and invalid UTF-8 all fail with
// fault.ErrProtocol.
func Decode(dir Direction, b []byte) (Envelope, error) {
	r := &reader{buf: b}
	version := r.u32()
	if r.err != nil {
		return Envelope{}, r.err
	}
	if err := checkVersion(version); err != nil {
		return Envelope{}, err
	}
	tag := r.u8()
	if r.err != nil {
		return Envelope{}, r.err
	}

	var m Message
	switch dir {
	case ToEngine:
		switch tag {
		case tagLoadDocument:
			m = LoadDocument{RequestID: r.u64(), URL: r.str(), HTML: r.str(), Width: r.u32(), Height: r.u32()}
		case tagTick:
			m = Tick{FrameIndex: r.u64()}
		case tagShutdown:
			m = Shutdown{}
		}
	case ToBrowser:
		switch tag {
		case tagDocumentReady:
			ready := DocumentReady{RequestID: r.u64(), CommandCount: r.u32()}
			if version >= 2 {
				ready.Title = r.str()
			}
			m = ready
		case tagLog:
			m = Log{Level: Level(r.u8()), Text: r.str()}
		case tagAckShutdown:
			m = AckShutdown{}
		case tagFrameReady:
			if version >= 2 {
				m = FrameReady{FrameIndex: r.u64(), List: r.list()}
			}
		}
	default:
		return Envelope{}, protocolErr("unknown direction %s", dir)
	}
	if m == nil {
		return Envelope{}, protocolErr("unknown tag %d for %s at version %d", tag, dir, version)
	}
	if r.err != nil {
		return Envelope{}, r.err
	}
	if n := len(r.buf) - r.off; n > 0 {
		return Envelope{}, protocolErr("%d trailing bytes after %s", n, Name(m))
	}
	return Envelope{Version: version, Message: m}, nil
}

func checkVersion(v uint32) error {
	if v < MinVersion || v > CurrentVersion {
		return protocolErr("schema version %d outside [%d, %d]", v, MinVersion, CurrentVersion)
	}
	return nil
}

func protocolErr(format string, args ...any) error {
	return fmt.Errorf("ipc: %s: %w", fmt.Sprintf(format, args...), fault.ErrProtocol)
}

type writer struct {
	buf []byte
	err error
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }

func (w *writer) str(s string) {
	if !utf8.ValidString(s) {
		w.fail(protocolErr("string is not valid UTF-8"))
		return
	}
	if len(s) > math.MaxUint32 {
		w.fail(protocolErr("string of %d bytes too long", len(s)))
		return
	}
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) color(c display.Color) {
	w.buf = append(w.buf, c.R, c.G, c.B, c.A)
}

func (w *writer) rect(r display.Rect) {
	w.i32(r.X)
	w.i32(r.Y)
	w.u32(r.Width)
	w.u32(r.Height)
}

func (w *writer) list(l *display.List) error {
	if l == nil {
		l = &display.List{}
	}
	if len(l.Commands) > math.MaxUint32 {
		return protocolErr("display list of %d commands too long", len(l.Commands))
	}
	w.u32(l.Width)
	w.u32(l.Height)
	w.u32(uint32(len(l.Commands)))
	for _, cmd := range l.Commands {
		w.u8(uint8(cmd.Kind()))
		switch c := cmd.(type) {
		case display.FillRect:
			w.rect(c.Rect)
			w.color(c.Color)
		case display.DrawText:
			w.i32(c.Origin.X)
			w.i32(c.Origin.Y)
			w.color(c.Style.Color)
			w.str(c.Content)
		case display.StrokeRect:
			w.rect(c.Rect)
			w.u32(c.Width)
			w.color(c.Color)
		default:
			return protocolErr("unsupported display command %T", cmd)
		}
	}
	return w.err
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// reader records the first failure; later reads return zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = protocolErr("unexpected end of message at offset %d", r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) str() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(len(r.buf)-r.off) {
		r.err = protocolErr("string length %d exceeds remaining %d bytes", n, len(r.buf)-r.off)
		return ""
	}
	b := r.take(int(n))
	if !utf8.Valid(b) {
		r.err = protocolErr("string at offset %d is not valid UTF-8", r.off-int(n))
		return ""
	}
	return string(b)
}

func (r *reader) color() display.Color {
	b := r.take(4)
	if b == nil {
		return display.Color{}
	}
	return display.Color{R: b[0], G: b[1], B: b[2], A: b[3]}
}

func (r *reader) rect() display.Rect {
	return display.Rect{X: r.i32(), Y: r.i32(), Width: r.u32(), Height: r.u32()}
}

// minCommandSize 是最短命令（kind + 坐标 + 颜色 + 空字符串）的字节数，用于限制预分配。
const minCommandSize = 1 + 8 + 4 + 4

func (r *reader) list() *display.List {
	l := &display.List{Width: r.u32(), Height: r.u32()}
	count := r.u32()
	if r.err != nil {
		return nil
	}
	l.Commands = make([]display.Command, 0, min(uint64(count), uint64(len(r.buf)-r.off)/minCommandSize))
	for i := uint32(0); i < count && r.err == nil; i++ {
		switch kind := display.Kind(r.u8()); kind {
		case display.KindFillRect:
			l.Commands = append(l.Commands, display.FillRect{Rect: r.rect(), Color: r.color()})
		case display.KindDrawText:
			origin := display.Point{X: r.i32(), Y: r.i32()}
			col := r.color()
			l.Commands = append(l.Commands, display.DrawText{Origin: origin, Content: r.str(), Style: display.TextStyle{Color: col}})
		case display.KindStrokeRect:
			rc := r.rect()
			width := r.u32()
			l.Commands = append(l.Commands, display.StrokeRect{Rect: rc, Width: width, Color: r.color()})
		default:
			if r.err == nil {
				r.err = protocolErr("unknown display command kind %d", kind)
			}
		}
	}
	if r.err != nil {
		return nil
	}
	return l
}
