package layout

import (
	"github.com/ByLCY/tessera/dom"
	"github.com/ByLCY/tessera/style"
)

// 该文件定义盒树与几何类型，供布局计算、绘制列表生成与调试 JSON 共用。
// 所有坐标与尺寸均为整数像素，原点在视口左上角。

// Viewport 是布局的可用区域。
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsEmpty 宽或高不大于 0 的视口不产生任何盒子。
func (v Viewport) IsEmpty() bool { return v.Width <= 0 || v.Height <= 0 }

// Rect 是轴对齐矩形。
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right 返回右边界（不含）。
func (r Rect) Right() int { return r.X + r.Width }

// Bottom 返回下边界（不含）。
func (r Rect) Bottom() int { return r.Y + r.Height }

// Contains 判断 o 是否完全位于 r 内（边界重合视为包含）。
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// BoxID 索引 Tree.Boxes。
type BoxID int

// NoBox 表示不存在的盒子，例如空树的根。
const NoBox BoxID = -1

// BoxKind 区分盒子类型。
type BoxKind uint8

const (
	BoxBlock BoxKind = iota // 块级元素（含文档根）
	BoxText                 // 文本行集合
	BoxImage                // 具有固有尺寸的替换元素
)

func (k BoxKind) String() string {
	switch k {
	case BoxText:
		return "text"
	case BoxImage:
		return "image"
	default:
		return "block"
	}
}

// Box 是一个已定位的盒子。Rect 为边框盒，Content 为内容盒。
// Node 只是对 DOM 节点的弱引用，仅用于查找。
type Box struct {
	Kind     BoxKind        `json:"kind"`
	Node     dom.NodeID     `json:"node"`
	Tag      string         `json:"tag,omitempty"`
	Parent   BoxID          `json:"parent"`
	Children []BoxID        `json:"children,omitempty"`
	Rect     Rect           `json:"rect"`
	Content  Rect           `json:"content"`
	Style    style.Computed `json:"style"`
	Lines    []TextLine     `json:"lines,omitempty"`
	Overflow bool           `json:"overflow,omitempty"`
}

// TextLine 表示排版后的一行文本；X/Y 为该行左上角的绝对坐标。
type TextLine struct {
	Content string `json:"content"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Tree 持有全部盒子。空视口得到 Root == NoBox 的空树。
type Tree struct {
	Viewport Viewport `json:"viewport"`
	Root     BoxID    `json:"root"`
	Boxes    []Box    `json:"boxes"`
}

// Len 返回盒子数量。
func (t *Tree) Len() int { return len(t.Boxes) }

// IsEmpty 判断树中是否没有盒子。
func (t *Tree) IsEmpty() bool { return t.Root == NoBox || len(t.Boxes) == 0 }

// Box 按 id 取盒子。
func (t *Tree) Box(id BoxID) *Box { return &t.Boxes[id] }

// Walk 以先序（即绘制顺序）遍历盒子；fn 返回 false 时跳过子树。
func (t *Tree) Walk(fn func(id BoxID, depth int) bool) {
	if t.IsEmpty() {
		return
	}
	var visit func(id BoxID, depth int)
	visit = func(id BoxID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range t.Boxes[id].Children {
			visit(c, depth+1)
		}
	}
	visit(t.Root, 0)
}
