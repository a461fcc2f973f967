package renderer

import "github.com/ByLCY/tessera/display"

// Renderer 将绘制列表输出为某种具体格式的字节（像素缓冲、PDF、SVG 等）。
type Renderer interface {
	Render(list *display.List) ([]byte, error)
}
