package style

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/tessera/dom"
	"github.com/ByLCY/tessera/markup"
)

// Display 控制元素是否生成盒子。
type Display uint8

const (
	DisplayBlock Display = iota
	DisplayNone
)

func (d Display) String() string {
	if d == DisplayNone {
		return "none"
	}
	return "block"
}

// Computed 是布局与绘制所需的最终样式。
type Computed struct {
	Display     Display `json:"display"`
	Background  Color   `json:"background"`
	Color       Color   `json:"color"`
	Width       Length  `json:"width"`
	Height      Length  `json:"height"`
	Margin      Edges   `json:"margin"`
	Padding     Edges   `json:"padding"`
	BorderWidth int     `json:"borderWidth,omitempty"`
	BorderColor Color   `json:"borderColor"`
	PreserveWS  bool    `json:"preserveWhitespace,omitempty"`
}

// TextColor 是文档默认文字颜色。
var TextColor = RGB(18, 24, 45)

// Initial 返回文档根的样式。
func Initial() Computed {
	return Computed{Display: DisplayBlock, Color: TextColor}
}

// hiddenTags 不参与渲染。
var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true, "meta": true,
	"link": true, "template": true, "noscript": true, "base": true,
}

// 默认背景色沿用调试调色板：不同语义的块用不同的浅色区分。
var uaBackgrounds = map[string]Color{
	"html":    RGB(233, 237, 248),
	"body":    RGB(236, 241, 251),
	"header":  RGB(195, 212, 250),
	"footer":  RGB(195, 212, 250),
	"main":    RGB(206, 221, 250),
	"article": RGB(206, 221, 250),
	"section": RGB(206, 221, 250),
	"aside":   RGB(206, 221, 250),
	"nav":     RGB(187, 206, 249),
	"h1":      RGB(169, 192, 248),
	"h2":      RGB(179, 201, 248),
	"h3":      RGB(179, 201, 248),
	"p":       RGB(217, 228, 251),
	"li":      RGB(217, 228, 251),
	"td":      RGB(217, 228, 251),
	"th":      RGB(217, 228, 251),
	"img":     RGB(200, 200, 200),
	"hr":      RGB(150, 156, 170),
}

var defaultBackground = RGB(210, 224, 250)

// Resolve 计算元素 id 的样式：先取父样式中可继承的部分，再叠加 UA 默认值，
// 最后应用内联 style 属性。无法识别的声明被忽略并记为诊断。
func Resolve(doc *dom.Document, id dom.NodeID, parent Computed) (Computed, []markup.Diagnostic) {
	n := doc.Node(id)
	c := Computed{
		Display:    DisplayBlock,
		Color:      parent.Color,
		PreserveWS: parent.PreserveWS,
	}
	if n.Kind != dom.KindElement {
		return c, nil
	}
	applyDefaults(&c, doc, id)
	if _, hidden := doc.Attr(id, "hidden"); hidden {
		c.Display = DisplayNone
	}

	inline, ok := doc.Attr(id, "style")
	if !ok {
		return c, nil
	}
	decls, problems := ParseDeclarations(inline)
	var diags []markup.Diagnostic
	for _, err := range problems {
		diags = append(diags, markup.Diagnostic{Offset: -1, Message: err.Error()})
	}
	for _, d := range decls {
		if err := apply(&c, d); err != nil {
			diags = append(diags, markup.Diagnostic{Offset: -1, Message: fmt.Sprintf("<%s> %v", n.Tag, err)})
		}
	}
	return c, diags
}

func applyDefaults(c *Computed, doc *dom.Document, id dom.NodeID) {
	tag := doc.Node(id).Tag
	if hiddenTags[tag] {
		c.Display = DisplayNone
		return
	}
	if bg, ok := uaBackgrounds[tag]; ok {
		c.Background = bg
	} else {
		c.Background = defaultBackground
	}

	c.Padding = UniformEdges(Px(4))
	c.Margin = Edges{Top: Px(0), Right: Px(0), Bottom: Px(4), Left: Px(0)}
	switch tag {
	case "html":
		c.Padding = UniformEdges(Px(0))
		c.Margin = UniformEdges(Px(0))
	case "body":
		c.Padding = UniformEdges(Px(0))
		c.Margin = UniformEdges(Px(8))
	case "h1", "h2", "h3":
		c.Padding = UniformEdges(Px(6))
		c.Margin.Bottom = Px(6)
	case "ul", "ol":
		c.Padding.Left = Px(24)
	case "blockquote":
		c.Margin.Left = Px(24)
		c.Margin.Right = Px(24)
	case "pre", "textarea":
		c.PreserveWS = true
	case "a":
		c.Color = RGB(26, 13, 171)
	case "hr":
		c.Padding = UniformEdges(Px(0))
		c.Height = Px(2)
		c.Margin = Edges{Top: Px(4), Right: Px(0), Bottom: Px(8), Left: Px(0)}
	case "img":
		c.Padding = UniformEdges(Px(0))
		c.Width = attrPx(doc, id, "width", 16)
		c.Height = attrPx(doc, id, "height", 16)
		c.BorderWidth = 1
		c.BorderColor = RGB(120, 120, 120)
	}
}

func attrPx(doc *dom.Document, id dom.NodeID, key string, fallback int) Length {
	raw, ok := doc.Attr(id, key)
	if !ok {
		return Px(fallback)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "px"))
	if err != nil || n < 0 {
		return Px(fallback)
	}
	return Px(n)
}

func apply(c *Computed, d *Declaration) error {
	switch d.Property {
	case "display":
		idents := Idents(d.Values)
		if len(idents) == 0 {
			return fmt.Errorf("display: 缺少关键字")
		}
		if idents[0] == "none" {
			c.Display = DisplayNone
		} else {
			c.Display = DisplayBlock
		}
	case "background", "background-color":
		col, ok := colorFromTerms(d.Values)
		if !ok {
			return fmt.Errorf("%s: 无法解析颜色", d.Property)
		}
		c.Background = col
	case "color":
		col, ok := colorFromTerms(d.Values)
		if !ok {
			return fmt.Errorf("color: 无法解析颜色")
		}
		c.Color = col
	case "width", "height":
		l, ok := singleLength(d.Values)
		if !ok {
			return fmt.Errorf("%s: 无法解析长度", d.Property)
		}
		if d.Property == "width" {
			c.Width = l
		} else {
			c.Height = l
		}
	case "margin", "padding":
		lens, ok := lengths(d.Values)
		if !ok {
			return fmt.Errorf("%s: 无法解析长度", d.Property)
		}
		e, ok := expandEdges(lens)
		if !ok {
			return fmt.Errorf("%s: 需要 1 到 4 个长度", d.Property)
		}
		if d.Property == "margin" {
			c.Margin = e
		} else {
			c.Padding = e
		}
	case "margin-top", "margin-right", "margin-bottom", "margin-left",
		"padding-top", "padding-right", "padding-bottom", "padding-left":
		l, ok := singleLength(d.Values)
		if !ok {
			return fmt.Errorf("%s: 无法解析长度", d.Property)
		}
		box, side, _ := strings.Cut(d.Property, "-")
		target := &c.Padding
		if box == "margin" {
			target = &c.Margin
		}
		setSide(target, side, l)
	case "border":
		applyBorder(c, d.Values)
	case "border-width":
		l, ok := singleLength(d.Values)
		if !ok {
			return fmt.Errorf("border-width: 无法解析长度")
		}
		c.BorderWidth = l.Resolve(0)
	case "border-color":
		col, ok := colorFromTerms(d.Values)
		if !ok {
			return fmt.Errorf("border-color: 无法解析颜色")
		}
		c.BorderColor = col
	case "white-space":
		for _, id := range Idents(d.Values) {
			switch id {
			case "pre", "pre-wrap", "pre-line", "break-spaces":
				c.PreserveWS = true
			case "normal", "nowrap":
				c.PreserveWS = false
			}
		}
	default:
		return fmt.Errorf("不支持的属性 %s", d.Property)
	}
	return nil
}

func applyBorder(c *Computed, terms []*Term) {
	width := 1
	if l, ok := firstLength(terms); ok {
		width = l.Resolve(0)
	}
	for _, id := range Idents(terms) {
		if id == "none" || id == "hidden" {
			width = 0
		}
	}
	c.BorderWidth = width
	if col, ok := colorFromTerms(terms); ok {
		c.BorderColor = col
	} else if !c.BorderColor.IsVisible() {
		c.BorderColor = c.Color
	}
}

func setSide(e *Edges, side string, l Length) {
	switch side {
	case "top":
		e.Top = l
	case "right":
		e.Right = l
	case "bottom":
		e.Bottom = l
	case "left":
		e.Left = l
	}
}

func termLength(t *Term) (Length, bool) {
	switch {
	case t.Number != nil:
		return ParseLength(*t.Number)
	case t.Ident != nil && strings.EqualFold(*t.Ident, "auto"):
		return Auto, true
	default:
		return Auto, false
	}
}

func singleLength(terms []*Term) (Length, bool) {
	if len(terms) != 1 {
		return Auto, false
	}
	return termLength(terms[0])
}

func firstLength(terms []*Term) (Length, bool) {
	for _, t := range terms {
		if t.Number != nil {
			return termLength(t)
		}
	}
	return Auto, false
}

func lengths(terms []*Term) ([]Length, bool) {
	out := make([]Length, 0, len(terms))
	for _, t := range terms {
		l, ok := termLength(t)
		if !ok {
			return nil, false
		}
		out = append(out, l)
	}
	return out, true
}
