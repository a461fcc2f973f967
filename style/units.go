package style

import (
	"math"
	"strconv"
	"strings"
)

// 本文件定义带单位的长度及其到整数像素的换算。

// Unit 记录长度值在样式中书写时的单位。
type Unit int

const (
	UnitAuto    Unit = iota // 未指定，由布局决定
	UnitPx                  // 像素（无单位数字同样按像素处理）
	UnitPercent             // 相对容器内容宽度
	UnitEm                  // 相对等宽字形的行高
)

// EmPx 是 1em 对应的像素数，与内置等宽字体的行高一致。
const EmPx = 13

// UnitToString 返回单位的简写。
func UnitToString(u Unit) string {
	switch u {
	case UnitPx:
		return "px"
	case UnitPercent:
		return "%"
	case UnitEm:
		return "em"
	default:
		return "auto"
	}
}

// Length 保留数值与原始单位。
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Auto 表示未指定的长度。
var Auto = Length{}

// Px 构造像素长度。
func Px(v int) Length { return Length{Value: float64(v), Unit: UnitPx} }

func (l Length) IsAuto() bool { return l.Unit == UnitAuto }

// Resolve 将长度换算为整数像素；百分比相对 base。结果被钳制在 [0, MaxPx]。
func (l Length) Resolve(base int) int {
	var v float64
	switch l.Unit {
	case UnitPx:
		v = l.Value
	case UnitPercent:
		v = float64(base) * l.Value / 100
	case UnitEm:
		v = l.Value * EmPx
	default:
		return 0
	}
	return ClampPx(v)
}

func (l Length) String() string {
	if l.IsAuto() {
		return "auto"
	}
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + UnitToString(l.Unit)
}

// MaxPx 是任何坐标或尺寸允许的最大像素值。
const MaxPx = 1 << 24

// ClampPx 将浮点像素值向下取整并钳制到 [0, MaxPx]，NaN 视为 0。
func ClampPx(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= MaxPx {
		return MaxPx
	}
	return int(math.Floor(v))
}

// ParseLength 解析形如 12px、50%、1.5em 或 auto 的长度字符串。
// 无法解析时返回 Auto 与 false。
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "auto" {
		return Auto, v == "auto"
	}
	unit := UnitPx
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPx}, {"%", UnitPercent}, {"em", UnitEm}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Auto, false
	}
	return Length{Value: f, Unit: unit}, true
}

// Edges 是上右下左四个方向的长度，用于 margin 与 padding。
type Edges struct {
	Top    Length `json:"top"`
	Right  Length `json:"right"`
	Bottom Length `json:"bottom"`
	Left   Length `json:"left"`
}

// UniformEdges 四边取同一长度。
func UniformEdges(l Length) Edges { return Edges{l, l, l, l} }

// Resolve 以容器宽度为百分比基准换算为像素。
func (e Edges) Resolve(base int) Insets {
	return Insets{
		Top:    e.Top.Resolve(base),
		Right:  e.Right.Resolve(base),
		Bottom: e.Bottom.Resolve(base),
		Left:   e.Left.Resolve(base),
	}
}

// Insets 是已换算的四边像素值。
type Insets struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Horizontal 返回左右之和。
func (i Insets) Horizontal() int { return i.Left + i.Right }

// Vertical 返回上下之和。
func (i Insets) Vertical() int { return i.Top + i.Bottom }

// Add 逐边相加。
func (i Insets) Add(o Insets) Insets {
	return Insets{i.Top + o.Top, i.Right + o.Right, i.Bottom + o.Bottom, i.Left + o.Left}
}

// expandEdges 按 CSS 简写规则把 1 到 4 个值展开为四边。
func expandEdges(vals []Length) (Edges, bool) {
	switch len(vals) {
	case 1:
		return UniformEdges(vals[0]), true
	case 2:
		return Edges{vals[0], vals[1], vals[0], vals[1]}, true
	case 3:
		return Edges{vals[0], vals[1], vals[2], vals[1]}, true
	case 4:
		return Edges{vals[0], vals[1], vals[2], vals[3]}, true
	default:
		return Edges{}, false
	}
}
