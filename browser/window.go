package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/frameloop"
	"github.com/ByLCY/tessera/platform"
	"github.com/ByLCY/tessera/renderer/raster"
)

// WindowOptions configures RunWindow.
type WindowOptions struct {
	URL    string
	Title  string
	Width  uint32
	Height uint32
	// Source returns the current document bytes; it is called on start, on
	// resize and whenever Reload fires.
	Source func() ([]byte, error)
	// Reload signals that the document changed on disk.
	Reload <-chan struct{}

	TickHz     int
	MaxUpdates int
	Overlay    bool
	// FrameDelay is slept between frames; 0 means 1ms.
	FrameDelay time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// WindowStats summarizes a finished windowed run.
type WindowStats struct {
	Frames       int
	Reloads      int
	FailedTicks  int
	LastFrame    uint64
	OverlayShown bool
}

// RunWindow drives s from a platform window until Quit, Escape, a refused
// present or ctx cancellation. A failed tick presents the last good frame.
func RunWindow(ctx context.Context, p platform.Platform, s *Session, opts WindowOptions) (WindowStats, error) {
	var stats WindowStats
	if opts.Source == nil {
		return stats, errors.New("browser: window needs a document source")
	}
	width, height := opts.Width, opts.Height
	if !p.InitWindow(platform.Config{ABIVersion: platform.ABIVersion, Width: width, Height: height, Title: opts.Title}) {
		return stats, fmt.Errorf("browser: platform refused a %dx%d window", width, height)
	}
	defer p.Shutdown()

	load := func() error {
		html, err := opts.Source()
		if err != nil {
			return err
		}
		_, err = s.Load(ctx, LoadRequest{URL: opts.URL, HTML: html, Width: width, Height: height})
		return err
	}
	if err := load(); err != nil {
		return stats, err
	}

	surf, err := newSurface(width, height)
	if err != nil {
		return stats, err
	}
	loop := frameloop.New(opts.TickHz, opts.MaxUpdates)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	delay := opts.FrameDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	overlay := opts.Overlay
	lastTick := now()

	for {
		if ctx.Err() != nil {
			return stats, nil
		}

		running := true
		for running {
			ev, ok := p.PollEvent()
			if !ok {
				break
			}
			switch ev := ev.(type) {
			case platform.Quit:
				running = false
			case platform.KeyDown:
				if ev.Key == platform.KeyEscape {
					running = false
					break
				}
				overlay = !overlay
				s.log.Info("overlay toggled", "overlay", overlay)
			case platform.Resize:
				if ev.Width == 0 || ev.Height == 0 || (ev.Width == width && ev.Height == height) {
					continue
				}
				width, height = ev.Width, ev.Height
				if surf, err = newSurface(width, height); err != nil {
					return stats, err
				}
				if err := load(); err != nil {
					s.log.Warn("reload after resize failed", "error", err)
				}
				s.log.Info("resized", "width", width, "height", height)
			}
		}
		if !running {
			return stats, nil
		}

		select {
		case <-opts.Reload:
			if err := load(); err != nil {
				s.log.Warn("reload failed, keeping current document", "error", err)
			} else {
				stats.Reloads++
			}
		default:
		}

		t := now()
		timing := loop.Advance(t.Sub(lastTick))
		lastTick = t

		frame, err := s.Tick(ctx, timing.FrameIndex)
		if err != nil {
			stats.FailedTicks++
			s.log.Warn("tick failed, presenting last good frame", "frame", timing.FrameIndex, "error", err)
		} else if frame != nil {
			list := frame.List
			if overlay {
				list = list.Clone()
				list.Commands = append(list.Commands, display.Overlay(timing.FrameIndex, list.Width, list.Height)...)
				stats.OverlayShown = true
			}
			if err := surf.draw(list); err != nil {
				stats.FailedTicks++
				s.log.Warn("rasterize failed, presenting last good frame", "frame", timing.FrameIndex, "error", err)
			}
		}
		if !p.PresentFrame(surf.frame()) {
			return stats, nil
		}
		stats.Frames++
		stats.LastFrame = timing.FrameIndex
		s.log.Debug("frame presented", "frame", timing.FrameIndex, "dt", timing.DT, "fps", timing.FPS, "fixed_updates", timing.FixedUpdates)

		select {
		case <-ctx.Done():
			return stats, nil
		case <-time.After(delay):
		}
	}
}

// surface 是窗口的双缓冲。先画到后台缓冲，成功后才交换，
// 因此前台始终是最后一帧成功的画面；尚无成功帧时为空白。
type surface struct {
	front, back *raster.FrameBuffer
}

func newSurface(width, height uint32) (*surface, error) {
	front, err := raster.NewFrameBuffer(int(width), int(height))
	if err != nil {
		return nil, err
	}
	back, err := raster.NewFrameBuffer(int(width), int(height))
	if err != nil {
		return nil, err
	}
	return &surface{front: front, back: back}, nil
}

// draw rasterizes list into the back buffer and swaps on success. On error
// the front buffer is untouched.
func (s *surface) draw(list *display.List) error {
	clear(s.back.Pix)
	if err := raster.Rasterize(list, s.back); err != nil {
		return err
	}
	s.front, s.back = s.back, s.front
	return nil
}

func (s *surface) frame() platform.Frame {
	return platform.Frame{
		Width:       uint32(s.front.Width),
		Height:      uint32(s.front.Height),
		StrideBytes: uint32(s.front.Stride),
		Pixels:      s.front.Pix,
	}
}
