package fonts

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
)

// Mono 是光栅化与排版共用的固定步进位图字体：每个字形 7px 宽、13px 高。
var Mono = basicfont.Face7x13

// Advance 与 LineHeight 是 Mono 的字形步进与行高（像素）。
var (
	Advance    = Mono.Advance
	LineHeight = Mono.Height
	Ascent     = Mono.Ascent
)

// Load 返回内置矢量字体的字节数据，name 可写为 "embed:gomono" 或直接 "gomono"。
// 矢量导出使用它，与位图字体保持相同的等宽度量。
func Load(name string) ([]byte, error) {
	clean := strings.ToLower(strings.TrimPrefix(name, "embed:"))
	switch clean {
	case "", "gomono", "go-mono", "mono":
		return gomono.TTF, nil
	default:
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体", name)
	}
}
