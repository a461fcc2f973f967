// Package display defines the display list: a flat, ordered, replayable
// sequence of drawing commands in paint order (back to front).
//
// Commands carry no reference to the DOM or box tree and are independent of
// the pixel buffer they are eventually rasterized into.
package display

import (
	"fmt"

	"github.com/ByLCY/tessera/style"
)

// Color is straight (non-premultiplied) RGBA8.
type Color = style.Color

// Rect is an axis-aligned rectangle in pixels. Width and Height are never negative.
type Rect struct {
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Point is a pixel position.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// TextStyle describes how a text run is drawn.
type TextStyle struct {
	Color Color `json:"color"`
}

// Kind identifies a command variant on the wire.
type Kind uint8

const (
	KindFillRect   Kind = 1
	KindDrawText   Kind = 2
	KindStrokeRect Kind = 3
)

// Command is one drawing instruction: FillRect, DrawText or StrokeRect.
type Command interface {
	command()
	Kind() Kind
	String() string
}

// FillRect paints a solid rectangle.
type FillRect struct {
	Rect  Rect
	Color Color
}

// DrawText paints a single line of text. Origin is the top-left corner of
// the line box; the baseline sits one font ascent below it.
type DrawText struct {
	Origin  Point
	Content string
	Style   TextStyle
}

// StrokeRect paints a rectangle outline of Width pixels drawn inside Rect.
type StrokeRect struct {
	Rect  Rect
	Width uint32
	Color Color
}

func (FillRect) command()   {}
func (DrawText) command()   {}
func (StrokeRect) command() {}

func (FillRect) Kind() Kind   { return KindFillRect }
func (DrawText) Kind() Kind   { return KindDrawText }
func (StrokeRect) Kind() Kind { return KindStrokeRect }

func (c FillRect) String() string {
	return fmt.Sprintf("fill %d,%d %dx%d %s", c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height, c.Color)
}

func (c DrawText) String() string {
	return fmt.Sprintf("text %d,%d %s %q", c.Origin.X, c.Origin.Y, c.Style.Color, c.Content)
}

func (c StrokeRect) String() string {
	return fmt.Sprintf("stroke %d,%d %dx%d w=%d %s", c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height, c.Width, c.Color)
}

// List is a display list. Width and Height record the viewport it was laid
// out for and do not constrain rasterization.
type List struct {
	Width    uint32
	Height   uint32
	Commands []Command
}

// Len returns the number of commands.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Commands)
}

// Clone returns a deep copy; commands are values so a slice copy suffices.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	out := &List{Width: l.Width, Height: l.Height, Commands: make([]Command, len(l.Commands))}
	copy(out.Commands, l.Commands)
	return out
}
