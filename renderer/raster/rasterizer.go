package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/fonts"
	"github.com/ByLCY/tessera/renderer"
)

// Rasterize executes list against fb in order. The descriptor is validated
// before any write; geometry entirely outside the buffer is a no-op.
// Rasterize keeps no reference to fb after returning.
func Rasterize(list *display.List, fb *FrameBuffer) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	if list == nil || fb.Width == 0 || fb.Height == 0 {
		return nil
	}
	dst := fb.rgba()
	for i, cmd := range list.Commands {
		switch c := cmd.(type) {
		case display.FillRect:
			fillRect(dst, c.Rect, c.Color)
		case display.StrokeRect:
			strokeRect(dst, c)
		case display.DrawText:
			drawText(dst, c)
		default:
			return fmt.Errorf("raster: command %d: unsupported kind %T", i, cmd)
		}
	}
	return nil
}

// clipRect converts r to image space and intersects it with bounds, using
// 64-bit arithmetic so extreme coordinates cannot wrap.
func clipRect(r display.Rect, bounds image.Rectangle) image.Rectangle {
	x0, y0 := int64(r.X), int64(r.Y)
	x1, y1 := x0+int64(r.Width), y0+int64(r.Height)
	x0, x1 = max(x0, int64(bounds.Min.X)), min(x1, int64(bounds.Max.X))
	y0, y1 = max(y0, int64(bounds.Min.Y)), min(y1, int64(bounds.Max.Y))
	if x0 >= x1 || y0 >= y1 {
		return image.Rectangle{}
	}
	return image.Rect(int(x0), int(y0), int(x1), int(y1))
}

func nrgba(c display.Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func fillRect(dst *image.RGBA, r display.Rect, c display.Color) {
	if c.A == 0 {
		return
	}
	clip := clipRect(r, dst.Rect)
	if clip.Empty() {
		return
	}
	draw.Draw(dst, clip, image.NewUniform(nrgba(c)), image.Point{}, draw.Over)
}

// strokeRect paints the outline as four bands inside the rectangle.
func strokeRect(dst *image.RGBA, c display.StrokeRect) {
	w, h, bw := c.Rect.Width, c.Rect.Height, c.Width
	if bw == 0 || w == 0 || h == 0 {
		return
	}
	if 2*uint64(bw) >= uint64(w) || 2*uint64(bw) >= uint64(h) {
		fillRect(dst, c.Rect, c.Color)
		return
	}
	x, y := c.Rect.X, c.Rect.Y
	bands := []display.Rect{
		{X: x, Y: y, Width: w, Height: bw},
		{X: x, Y: y + int32(h-bw), Width: w, Height: bw},
		{X: x, Y: y + int32(bw), Width: bw, Height: h - 2*bw},
		{X: x + int32(w-bw), Y: y + int32(bw), Width: bw, Height: h - 2*bw},
	}
	for _, band := range bands {
		fillRect(dst, band, c.Color)
	}
}

func drawText(dst *image.RGBA, c display.DrawText) {
	if c.Content == "" || c.Style.Color.A == 0 {
		return
	}
	x, y := int(c.Origin.X), int(c.Origin.Y)
	b := dst.Rect
	// 文本行整体位于缓冲区之外时跳过；也避免极端坐标在 26.6 定点中溢出
	if x >= b.Max.X || y >= b.Max.Y || y+fonts.LineHeight <= b.Min.Y || x < -maxDimension || y < -maxDimension {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(nrgba(c.Style.Color)),
		Face: fonts.Mono,
		Dot:  fixed.P(x, y+fonts.Ascent),
	}
	d.DrawString(c.Content)
}

// Renderer rasterizes a list into a fresh, tightly packed buffer sized by the
// list's viewport.
type Renderer struct{}

var _ renderer.Renderer = Renderer{}

// Render implements renderer.Renderer.
func (Renderer) Render(list *display.List) ([]byte, error) {
	if list == nil {
		return nil, fmt.Errorf("raster: nil display list: %w", fault.ErrInvalidArgument)
	}
	fb, err := NewFrameBuffer(int(list.Width), int(list.Height))
	if err != nil {
		return nil, err
	}
	if err := Rasterize(list, fb); err != nil {
		return nil, err
	}
	return fb.Pix, nil
}
