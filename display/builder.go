package display

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ByLCY/tessera/fonts"
	"github.com/ByLCY/tessera/layout"
	"github.com/ByLCY/tessera/style"
)

// Background is the viewport fill painted first in every list.
var Background = style.RGB(245, 245, 248)

// Options controls list generation.
type Options struct {
	// Overlay appends a frame counter bar after all content.
	Overlay bool
	// Frame is the frame index shown by the overlay.
	Frame uint64
}

var (
	overlayBar  = style.Color{R: 0, G: 0, B: 0, A: 190}
	overlayText = style.RGB(255, 255, 255)
)

// Build walks the box tree in paint order. The first command always fills
// the viewport with Background; block boxes add an optional background fill
// and border stroke, text boxes add one DrawText per line.
func Build(tree *layout.Tree, opts Options) *List {
	vp := layout.Viewport{}
	if tree != nil {
		vp = tree.Viewport
	}
	w, h := uint32(max(vp.Width, 0)), uint32(max(vp.Height, 0))
	list := &List{Width: w, Height: h}
	list.Commands = append(list.Commands, FillRect{Rect: Rect{0, 0, w, h}, Color: Background})

	if tree != nil {
		tree.Walk(func(id layout.BoxID, _ int) bool {
			list.Commands = appendBox(list.Commands, tree.Box(id))
			return true
		})
	}

	if opts.Overlay {
		list.Commands = append(list.Commands, Overlay(opts.Frame, w, h)...)
	}
	return list
}

// Overlay returns the debug bar commands for a frame: a translucent dark
// bar with "FRAME:<n> SIZE:<w>X<h>" on top. They are painted last.
func Overlay(frame uint64, w, h uint32) []Command {
	label := fmt.Sprintf("FRAME:%d SIZE:%dX%d", frame, w, h)
	barWidth := uint32(utf8.RuneCountInString(label)*fonts.Advance + 8)
	return []Command{
		FillRect{Rect: Rect{6, 6, barWidth, uint32(fonts.LineHeight + 6)}, Color: overlayBar},
		DrawText{Origin: Point{10, 9}, Content: label, Style: TextStyle{Color: overlayText}},
	}
}

func appendBox(cmds []Command, b *layout.Box) []Command {
	switch b.Kind {
	case layout.BoxText:
		for _, line := range b.Lines {
			if line.Content == "" {
				continue
			}
			cmds = append(cmds, DrawText{
				Origin:  Point{int32(line.X), int32(line.Y)},
				Content: line.Content,
				Style:   TextStyle{Color: b.Style.Color},
			})
		}
	default:
		r := toRect(b.Rect)
		if r.Width == 0 || r.Height == 0 {
			return cmds
		}
		if b.Style.Background.IsVisible() {
			cmds = append(cmds, FillRect{Rect: r, Color: b.Style.Background})
		}
		if b.Style.BorderWidth > 0 && b.Style.BorderColor.IsVisible() {
			cmds = append(cmds, StrokeRect{Rect: r, Width: uint32(b.Style.BorderWidth), Color: b.Style.BorderColor})
		}
	}
	return cmds
}

func toRect(r layout.Rect) Rect {
	return Rect{
		X:      int32(r.X),
		Y:      int32(r.Y),
		Width:  uint32(max(r.Width, 0)),
		Height: uint32(max(r.Height, 0)),
	}
}

// Dump renders the list as text, one command per line. Golden diff
// artifacts compare these dumps.
func Dump(l *List) string {
	var b strings.Builder
	fmt.Fprintf(&b, "list %dx%d commands=%d\n", l.Width, l.Height, l.Len())
	for i, c := range l.Commands {
		fmt.Fprintf(&b, "%04d %s\n", i, c)
	}
	return b.String()
}
