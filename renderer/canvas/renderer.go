package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fonts"
	"github.com/ByLCY/tessera/layout"
	"github.com/ByLCY/tessera/renderer"
)

// Format 选择矢量输出格式。
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// pxToMm 按 96 DPI 将像素换算为 canvas 使用的毫米。
const pxToMm = 25.4 / 96

// monoEm 使 Go Mono（步进 0.6em）的字形步进与位图字体的 7px 一致。
var monoEm = float64(fonts.Advance) / 0.6

// Renderer draws display lists via github.com/tdewolff/canvas.
type Renderer struct {
	format   Format
	fontName string
	title    string

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	Format Format
	Font   string // 内置字体名，默认 gomono
	Title  string // 写入 PDF 元数据
}

// NewRenderer creates a PDF renderer using the embedded mono font.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer with the given output format and font.
func NewRendererWithOptions(opts Options) *Renderer {
	format := opts.Format
	if format == "" {
		format = FormatPDF
	}
	return &Renderer{format: format, fontName: opts.Font, title: opts.Title}
}

// Render renders the list into PDF or SVG bytes sized by the list's viewport.
func (r *Renderer) Render(list *display.List) ([]byte, error) {
	if list == nil {
		return nil, fmt.Errorf("绘制列表为空")
	}
	if list.Width == 0 || list.Height == 0 {
		return nil, fmt.Errorf("缺少可渲染的区域: %dx%d", list.Width, list.Height)
	}
	width := float64(list.Width) * pxToMm
	height := float64(list.Height) * pxToMm

	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点
	if err := r.drawList(ctx, list); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch r.format {
	case FormatPDF:
		writer := pdf.New(&buf, width, height, nil)
		writer.SetInfo(r.title, "", "", "", "tessera")
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 PDF 失败: %w", err)
		}
	case FormatSVG:
		writer := svg.New(&buf, width, height, nil)
		c.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", r.format)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawList(ctx *canvas.Context, list *display.List) error {
	for i, cmd := range list.Commands {
		switch c := cmd.(type) {
		case display.FillRect:
			drawRect(ctx, c.Rect, c.Color, nil, 0)
		case display.StrokeRect:
			col := c.Color
			drawRect(ctx, c.Rect, display.Color{}, &col, c.Width)
		case display.DrawText:
			if err := r.drawText(ctx, c); err != nil {
				return err
			}
		default:
			return fmt.Errorf("第 %d 条命令类型不支持: %T", i, cmd)
		}
	}
	return nil
}

// drawRect 绘制矩形；描边向内收缩半个线宽，与光栅化器的内描边一致。
func drawRect(ctx *canvas.Context, rc display.Rect, fill display.Color, stroke *display.Color, strokeWidth uint32) {
	if rc.Width == 0 || rc.Height == 0 {
		return
	}
	x, y := float64(rc.X)*pxToMm, float64(rc.Y)*pxToMm
	w, h := float64(rc.Width)*pxToMm, float64(rc.Height)*pxToMm
	ctx.SetFillColor(toColor(fill))
	if stroke != nil && strokeWidth > 0 {
		sw := math.Min(float64(strokeWidth)*pxToMm, math.Min(w, h)/2)
		ctx.SetStrokeColor(toColor(*stroke))
		ctx.SetStrokeWidth(sw)
		ctx.DrawPath(x+sw/2, y+sw/2, canvas.Rectangle(w-sw, h-sw))
		return
	}
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeWidth(0)
	ctx.DrawPath(x, y, canvas.Rectangle(w, h))
}

func (r *Renderer) drawText(ctx *canvas.Context, c display.DrawText) error {
	face, err := r.fontFace(c.Style.Color)
	if err != nil {
		return err
	}
	textLine := canvas.NewTextLine(face, c.Content, canvas.Left)
	// 基线位置：行顶部加上位图字体的上升部，使两种后端的基线对齐
	x := float64(c.Origin.X) * pxToMm
	baseline := float64(int(c.Origin.Y)+fonts.Ascent) * pxToMm
	ctx.DrawText(x, baseline, textLine)
	return nil
}

// LayoutLines 实现 layout.Typesetter 接口，按矢量字体的真实字宽做贪心换行。
// 宽度与返回值均为像素。
func (r *Renderer) LayoutLines(content string, width int, wrap string) ([]layout.TextLine, error) {
	face, err := r.fontFace(display.Color{A: 255})
	if err != nil {
		return nil, err
	}
	measure := func(s string) int {
		return int(math.Ceil(face.TextWidth(s) / pxToMm))
	}
	var raw []string
	if wrap == layout.WrapPre {
		raw = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	} else {
		raw = greedyWrapTokens(content, width, measure)
	}
	lines := make([]layout.TextLine, 0, len(raw))
	for _, s := range raw {
		lines = append(lines, layout.TextLine{Content: s, Width: measure(s), Height: fonts.LineHeight})
	}
	return lines, nil
}

func (r *Renderer) fontFace(col display.Color) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily()
	if err != nil {
		return nil, err
	}
	sizePt := monoEm * 72 / 96
	return family.Face(sizePt, toColor(col), canvas.FontRegular, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}
	data, err := fonts.Load(r.fontName)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("tessera-mono")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体失败: %w", err)
	}
	r.family = family
	return family, nil
}

func toColor(c display.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, float64(c.A)/255.0)
}

// greedyWrapTokens 优先在空白处分割，超过限制时在词内拆分。
func greedyWrapTokens(content string, width int, measure func(string) int) []string {
	limit := width
	if limit <= 0 {
		limit = math.MaxInt
	}
	tokens := tokenizeContent(content)
	var lines []string
	var builder strings.Builder
	currentWidth := 0

	emit := func() {
		if builder.Len() == 0 {
			return
		}
		lines = append(lines, strings.TrimRightFunc(builder.String(), unicode.IsSpace))
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		if builder.Len() == 0 && strings.TrimSpace(token) == "" {
			return
		}
		builder.WriteString(token)
		currentWidth += measure(token)
	}

	for _, token := range tokens {
		tokenWidth := measure(token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit && strings.TrimSpace(token) != "" {
			emit()
		}
		if tokenWidth <= limit {
			appendToken(token)
			continue
		}
		for _, chunk := range splitTokenByWidth(token, limit, measure) {
			if currentWidth > 0 {
				emit()
			}
			appendToken(chunk)
		}
	}
	emit()
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		isSpace := unicode.IsSpace(r)
		if isSpace {
			r = ' '
		}
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		if isSpace && builder.Len() > 0 {
			continue
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit int, measure func(string) int) []string {
	if limit <= 0 || limit == math.MaxInt {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if measure(builder.String()) > limit && builder.Len() > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}
