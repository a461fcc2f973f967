// Package ipc defines the versioned message schema exchanged between the
// orchestrator and the content engine, its binary codec and the transports
// that carry it.
package ipc

import (
	"fmt"

	"github.com/ByLCY/tessera/display"
)

// Schema versions understood by this build.
const (
	MinVersion     uint32 = 1
	CurrentVersion uint32 = 2
)

// Direction tells the decoder which tag table applies; both directions reuse
// small tag numbers.
type Direction uint8

const (
	ToEngine  Direction = iota + 1 // orchestrator -> engine
	ToBrowser                      // engine -> orchestrator
)

func (d Direction) String() string {
	switch d {
	case ToEngine:
		return "to_engine"
	case ToBrowser:
		return "to_browser"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Opposite returns the direction of replies to d.
func (d Direction) Opposite() Direction {
	if d == ToEngine {
		return ToBrowser
	}
	return ToEngine
}

// Message is the closed set of protocol messages.
type Message interface {
	message()
	Tag() uint8
	Direction() Direction
	// Since is the first schema version that carries the message.
	Since() uint32
}

// Level is the severity carried by Log.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// LoadDocument asks the engine to run the pipeline on HTML for a viewport.
type LoadDocument struct {
	RequestID uint64
	URL       string
	HTML      string
	Width     uint32
	Height    uint32
}

// Tick advances the engine to FrameIndex.
type Tick struct {
	FrameIndex uint64
}

// Shutdown asks the engine to acknowledge and stop.
type Shutdown struct{}

// DocumentReady reports a completed load. Title is present from version 2.
type DocumentReady struct {
	RequestID    uint64
	CommandCount uint32
	Title        string
}

// Log carries a diagnostic from the engine.
type Log struct {
	Level Level
	Text  string
}

// AckShutdown is the engine's last message.
type AckShutdown struct{}

// FrameReady carries the display list produced for a tick (version 2).
type FrameReady struct {
	FrameIndex uint64
	List       *display.List
}

const (
	tagLoadDocument uint8 = 1
	tagTick         uint8 = 2
	tagShutdown     uint8 = 3

	tagDocumentReady uint8 = 1
	tagLog           uint8 = 2
	tagAckShutdown   uint8 = 3
	tagFrameReady    uint8 = 4
)

func (LoadDocument) message()  {}
func (Tick) message()          {}
func (Shutdown) message()      {}
func (DocumentReady) message() {}
func (Log) message()           {}
func (AckShutdown) message()   {}
func (FrameReady) message()    {}

func (LoadDocument) Tag() uint8  { return tagLoadDocument }
func (Tick) Tag() uint8          { return tagTick }
func (Shutdown) Tag() uint8      { return tagShutdown }
func (DocumentReady) Tag() uint8 { return tagDocumentReady }
func (Log) Tag() uint8           { return tagLog }
func (AckShutdown) Tag() uint8   { return tagAckShutdown }
func (FrameReady) Tag() uint8    { return tagFrameReady }

func (LoadDocument) Direction() Direction  { return ToEngine }
func (Tick) Direction() Direction          { return ToEngine }
func (Shutdown) Direction() Direction      { return ToEngine }
func (DocumentReady) Direction() Direction { return ToBrowser }
func (Log) Direction() Direction           { return ToBrowser }
func (AckShutdown) Direction() Direction   { return ToBrowser }
func (FrameReady) Direction() Direction    { return ToBrowser }

func (LoadDocument) Since() uint32  { return 1 }
func (Tick) Since() uint32          { return 1 }
func (Shutdown) Since() uint32      { return 1 }
func (DocumentReady) Since() uint32 { return 1 }
func (Log) Since() uint32           { return 1 }
func (AckShutdown) Since() uint32   { return 1 }
func (FrameReady) Since() uint32    { return 2 }

// Envelope pairs a message with the schema version it is encoded at.
type Envelope struct {
	Version uint32
	Message Message
}

// Wrap builds an envelope at CurrentVersion.
func Wrap(m Message) Envelope {
	return Envelope{Version: CurrentVersion, Message: m}
}

// Name returns a short label for logs and the journal.
func Name(m Message) string {
	switch m.(type) {
	case LoadDocument:
		return "LoadDocument"
	case Tick:
		return "Tick"
	case Shutdown:
		return "Shutdown"
	case DocumentReady:
		return "DocumentReady"
	case Log:
		return "Log"
	case AckShutdown:
		return "AckShutdown"
	case FrameReady:
		return "FrameReady"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", m)
	}
}
