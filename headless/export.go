// Package headless renders documents without a window: raw frame export and
// golden-hash regression checks.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ByLCY/tessera/browser"
	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/renderer/raster"
)

// FormatRGBA8 is the only pixel format exported.
const FormatRGBA8 = "rgba8"

// ExportRequest names a document and the frame to capture.
type ExportRequest struct {
	Path   string
	Width  uint32
	Height uint32
	Frame  uint64
	// Pipeline configures the in-process engine; nil uses the defaults.
	Pipeline *engine.Pipeline
	Session  browser.Options
}

// Metadata is written next to exported pixels.
type Metadata struct {
	Format      string `json:"format"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	StrideBytes uint32 `json:"stride_bytes"`
	Frame       uint64 `json:"frame"`
}

// Result is one exported frame.
type Result struct {
	Pixels   []byte
	Metadata Metadata
	// List is the display list the pixels were rasterized from.
	List *display.List
}

// Export loads req.Path in a fresh in-process session, ticks to req.Frame
// and rasterizes that frame into a tightly packed RGBA8 buffer.
func Export(ctx context.Context, req ExportRequest) (Result, error) {
	if req.Width == 0 || req.Height == 0 {
		return Result{}, fmt.Errorf("headless: export size %dx%d: %w", req.Width, req.Height, fault.ErrInvalidArgument)
	}
	html, err := os.ReadFile(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("headless: read document: %w", err)
	}

	pipeline := req.Pipeline
	if pipeline == nil {
		pipeline = &engine.Pipeline{}
	}
	s := browser.StartInProcess(ctx, pipeline, req.Session)
	res, err := exportFrame(ctx, s, req, html)
	if err != nil {
		return Result{}, errors.Join(err, s.Close())
	}
	if err := s.Shutdown(ctx); err != nil {
		return Result{}, err
	}
	return res, nil
}

func exportFrame(ctx context.Context, s *browser.Session, req ExportRequest, html []byte) (Result, error) {
	if _, err := s.Load(ctx, browser.LoadRequest{URL: "file://" + req.Path, HTML: html, Width: req.Width, Height: req.Height}); err != nil {
		return Result{}, err
	}
	frame, err := s.Tick(ctx, req.Frame)
	if err != nil {
		return Result{}, err
	}
	if frame == nil {
		return Result{}, fmt.Errorf("headless: session version %d carries no frames", s.Version())
	}
	fb, err := raster.NewFrameBuffer(int(req.Width), int(req.Height))
	if err != nil {
		return Result{}, err
	}
	if err := raster.Rasterize(frame.List, fb); err != nil {
		return Result{}, err
	}
	return Result{
		Pixels: fb.Pix,
		List:   frame.List,
		Metadata: Metadata{
			Format:      FormatRGBA8,
			Width:       req.Width,
			Height:      req.Height,
			StrideBytes: req.Width * 4,
			Frame:       frame.Index,
		},
	}, nil
}

// WriteExport writes res.Pixels to out and the metadata to out+".json".
func WriteExport(out string, res Result) error {
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("headless: create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, res.Pixels, 0o644); err != nil {
		return fmt.Errorf("headless: write pixels: %w", err)
	}
	meta, err := json.MarshalIndent(res.Metadata, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(out+".json", append(meta, '\n'), 0o644); err != nil {
		return fmt.Errorf("headless: write metadata: %w", err)
	}
	return nil
}
