// Package raster interprets display lists against caller-owned RGBA8 frame
// buffers.
//
// Pixels are stored premultiplied. Display-list colours are straight alpha
// and are composited with Porter-Duff source-over using integer arithmetic,
// so identical inputs always produce identical bytes.
package raster

import (
	"fmt"
	"image"

	"github.com/ByLCY/tessera/fault"
)

// FrameBuffer describes caller-owned pixel memory. Stride is the number of
// bytes per row and may exceed Width*4; padding bytes are never written.
type FrameBuffer struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// MaxBufferBytes bounds the memory NewFrameBuffer will allocate.
const MaxBufferBytes = 1 << 30

// NewFrameBuffer allocates a tightly packed buffer.
func NewFrameBuffer(width, height int) (*FrameBuffer, error) {
	if width < 0 || height < 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("raster: invalid size %dx%d: %w", width, height, fault.ErrInvalidArgument)
	}
	if size := int64(width) * 4 * int64(height); size > MaxBufferBytes {
		return nil, fmt.Errorf("raster: %dx%d needs %d bytes, limit %d: %w", width, height, size, MaxBufferBytes, fault.ErrInvalidArgument)
	}
	return &FrameBuffer{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Pix:    make([]byte, width*4*height),
	}, nil
}

// Validate checks the descriptor before any pixel is touched.
func (fb *FrameBuffer) Validate() error {
	if fb == nil {
		return fmt.Errorf("raster: nil frame buffer: %w", fault.ErrInvalidArgument)
	}
	if fb.Width < 0 || fb.Height < 0 {
		return fmt.Errorf("raster: negative size %dx%d: %w", fb.Width, fb.Height, fault.ErrInvalidArgument)
	}
	if fb.Width > maxDimension || fb.Height > maxDimension {
		return fmt.Errorf("raster: size %dx%d exceeds %d: %w", fb.Width, fb.Height, maxDimension, fault.ErrInvalidArgument)
	}
	if fb.Stride < fb.Width*4 {
		return fmt.Errorf("raster: stride %d < width*4 (%d): %w", fb.Stride, fb.Width*4, fault.ErrInvalidArgument)
	}
	need := int64(fb.Stride) * int64(fb.Height)
	if int64(len(fb.Pix)) < need {
		return fmt.Errorf("raster: buffer of %d bytes < stride*height (%d): %w", len(fb.Pix), need, fault.ErrInvalidArgument)
	}
	return nil
}

// maxDimension bounds width and height so that coordinates stay exact in
// 26.6 fixed point.
const maxDimension = 1 << 24

// rgba views the buffer as an image without copying. Writes through the view
// stay inside [0,Width)x[0,Height).
func (fb *FrameBuffer) rgba() *image.RGBA {
	return &image.RGBA{
		Pix:    fb.Pix[:fb.Stride*fb.Height],
		Stride: fb.Stride,
		Rect:   image.Rect(0, 0, fb.Width, fb.Height),
	}
}

// Tight returns a copy of the pixels without row padding (Width*4 bytes per row).
func (fb *FrameBuffer) Tight() []byte {
	row := fb.Width * 4
	out := make([]byte, row*fb.Height)
	for y := range fb.Height {
		copy(out[y*row:(y+1)*row], fb.Pix[y*fb.Stride:y*fb.Stride+row])
	}
	return out
}

// At returns the premultiplied RGBA bytes of one pixel.
func (fb *FrameBuffer) At(x, y int) [4]byte {
	i := y*fb.Stride + x*4
	return [4]byte{fb.Pix[i], fb.Pix[i+1], fb.Pix[i+2], fb.Pix[i+3]}
}
