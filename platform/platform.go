// Package platform is the window/input boundary. The engine only hands it
// finished frame buffers and reads input events back.
package platform

import "fmt"

// ABIVersion is the version of the Config/Frame/Event contract.
const ABIVersion uint32 = 1

// Key codes.
const (
	KeyUnknown uint32 = 0
	KeyEscape  uint32 = 27
)

// Config describes the window to open.
type Config struct {
	ABIVersion uint32
	Width      uint32
	Height     uint32
	Title      string
}

// Frame is a finished RGBA8 buffer handed to the platform for display.
type Frame struct {
	Width       uint32
	Height      uint32
	StrideBytes uint32
	Pixels      []byte
}

// Validate checks the descriptor against the buffer length.
func (f Frame) Validate() error {
	if f.StrideBytes < f.Width*4 {
		return fmt.Errorf("platform: stride %d < width*4 (%d)", f.StrideBytes, f.Width*4)
	}
	if need := uint64(f.StrideBytes) * uint64(f.Height); uint64(len(f.Pixels)) < need {
		return fmt.Errorf("platform: %d pixel bytes < stride*height (%d)", len(f.Pixels), need)
	}
	return nil
}

// Event is the closed set of input events.
type Event interface {
	event()
}

type (
	Quit    struct{}
	KeyDown struct{ Key uint32 }
	KeyUp   struct{ Key uint32 }
	Resize  struct{ Width, Height uint32 }
)

func (Quit) event()    {}
func (KeyDown) event() {}
func (KeyUp) event()   {}
func (Resize) event()  {}

// Platform opens a window, delivers input and presents frames.
type Platform interface {
	InitWindow(cfg Config) bool
	// PollEvent returns the next pending event without blocking.
	PollEvent() (Event, bool)
	PresentFrame(frame Frame) bool
	Shutdown()
}
