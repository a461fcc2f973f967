package style

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color 是非预乘 alpha 的 RGBA8 颜色。
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// RGB 构造不透明颜色。
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 255} }

// Transparent 完全透明。
var Transparent = Color{}

// IsVisible 判断 alpha 是否大于 0。
func (c Color) IsVisible() bool { return c.A > 0 }

func (c Color) String() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

var namedColors = map[string]Color{
	"black":       RGB(0, 0, 0),
	"white":       RGB(255, 255, 255),
	"red":         RGB(255, 0, 0),
	"green":       RGB(0, 128, 0),
	"lime":        RGB(0, 255, 0),
	"blue":        RGB(0, 0, 255),
	"navy":        RGB(0, 0, 128),
	"teal":        RGB(0, 128, 128),
	"aqua":        RGB(0, 255, 255),
	"yellow":      RGB(255, 255, 0),
	"orange":      RGB(255, 165, 0),
	"purple":      RGB(128, 0, 128),
	"fuchsia":     RGB(255, 0, 255),
	"maroon":      RGB(128, 0, 0),
	"olive":       RGB(128, 128, 0),
	"gray":        RGB(128, 128, 128),
	"grey":        RGB(128, 128, 128),
	"silver":      RGB(192, 192, 192),
	"transparent": Transparent,
}

// ParseColor 解析 #rgb、#rgba、#rrggbb、#rrggbbaa 以及颜色名。
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	if !strings.HasPrefix(v, "#") {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	hex := v[1:]
	switch len(hex) {
	case 3, 4:
		var ch [4]uint8
		ch[3] = 255
		for i := range len(hex) {
			n, err := strconv.ParseUint(strings.Repeat(hex[i:i+1], 2), 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
			}
			ch[i] = uint8(n)
		}
		return Color{ch[0], ch[1], ch[2], ch[3]}, nil
	case 6, 8:
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
		if len(hex) == 6 {
			return RGB(uint8(n>>16), uint8(n>>8), uint8(n)), nil
		}
		return Color{uint8(n >> 24), uint8(n >> 16), uint8(n >> 8), uint8(n)}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

// colorFromTerms 取第一个可以解释为颜色的项：十六进制、颜色名或 rgb()/rgba()。
func colorFromTerms(terms []*Term) (Color, bool) {
	for _, t := range terms {
		switch {
		case t.Color != nil:
			if c, err := ParseColor(*t.Color); err == nil {
				return c, true
			}
		case t.Ident != nil:
			if c, err := ParseColor(*t.Ident); err == nil {
				return c, true
			}
		case t.Func != nil:
			if c, ok := colorFunction(t.Func); ok {
				return c, true
			}
		}
	}
	return Color{}, false
}

func colorFunction(fn *Function) (Color, bool) {
	name := strings.ToLower(fn.Name)
	if name != "rgb" && name != "rgba" {
		return Color{}, false
	}
	var nums []float64
	var pct []bool
	for _, a := range fn.Args {
		if a.Number == nil {
			continue
		}
		raw := *a.Number
		isPct := strings.HasSuffix(raw, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(raw, "%"), "px"), 64)
		if err != nil {
			return Color{}, false
		}
		nums = append(nums, f)
		pct = append(pct, isPct)
	}
	if len(nums) != 3 && len(nums) != 4 {
		return Color{}, false
	}
	channel := func(i int) uint8 {
		v := nums[i]
		if pct[i] {
			v = v * 255 / 100
		}
		return clampByte(v)
	}
	c := Color{R: channel(0), G: channel(1), B: channel(2), A: 255}
	if len(nums) == 4 {
		a := nums[3]
		if pct[3] {
			a /= 100
		}
		c.A = clampByte(a * 255)
	}
	return c, true
}

func clampByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
