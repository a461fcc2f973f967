package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Null is an in-memory platform for headless runs and tests. Queued events
// are delivered in order; after MaxFrames presented frames it reports Quit.
type Null struct {
	// MaxFrames stops the loop after this many presents; 0 means no limit.
	MaxFrames int

	mu        sync.Mutex
	cfg       Config
	open      bool
	events    []Event
	presented []string
	last      Frame
}

var _ Platform = (*Null)(nil)

// NewNull returns a platform that quits after maxFrames presents.
func NewNull(maxFrames int, events ...Event) *Null {
	return &Null{MaxFrames: maxFrames, events: events}
}

func (n *Null) InitWindow(cfg Config) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cfg.ABIVersion != ABIVersion || cfg.Width == 0 || cfg.Height == 0 {
		return false
	}
	n.cfg = cfg
	n.open = true
	return true
}

// Push queues events for later PollEvent calls.
func (n *Null) Push(events ...Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *Null) PollEvent() (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.MaxFrames > 0 && len(n.presented) >= n.MaxFrames {
		return Quit{}, true
	}
	if len(n.events) == 0 {
		return nil, false
	}
	ev := n.events[0]
	n.events = n.events[1:]
	if r, ok := ev.(Resize); ok && r.Width > 0 && r.Height > 0 {
		n.cfg.Width, n.cfg.Height = r.Width, r.Height
	}
	return ev, true
}

// PresentFrame records the SHA-256 of the visible rows of frame.
func (n *Null) PresentFrame(frame Frame) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open || frame.Validate() != nil {
		return false
	}
	h := sha256.New()
	row := int(frame.Width) * 4
	for y := 0; y < int(frame.Height); y++ {
		off := y * int(frame.StrideBytes)
		h.Write(frame.Pixels[off : off+row])
	}
	n.presented = append(n.presented, hex.EncodeToString(h.Sum(nil)))
	n.last = frame
	return true
}

func (n *Null) Shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
}

// Presented returns the hashes of presented frames in order.
func (n *Null) Presented() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.presented...)
}

// LastFrame returns the most recently presented frame.
func (n *Null) LastFrame() (Frame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last, len(n.presented) > 0
}

// Config returns the current window configuration.
func (n *Null) Config() Config {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg
}

// Open reports whether the window is initialized and not shut down.
func (n *Null) Open() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open
}
