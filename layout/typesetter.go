package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ByLCY/tessera/fonts"
)

// Monospace 按固定字形步进测量文本，与宿主字体无关，保证输出确定。
type Monospace struct {
	Advance    int
	LineHeight int
}

var _ Typesetter = Monospace{}

// DefaultTypesetter 使用内置位图字体的度量。
func DefaultTypesetter() Monospace {
	return Monospace{Advance: fonts.Advance, LineHeight: fonts.LineHeight}
}

// LayoutLines 实现 Typesetter 接口，使用贪心换行算法。
// 宽度不足一个字形时仍保证每行至少一个字符，由调用方标记溢出。
func (m Monospace) LayoutLines(content string, width int, wrap string) ([]TextLine, error) {
	if m.Advance <= 0 {
		m.Advance = fonts.Advance
	}
	if m.LineHeight <= 0 {
		m.LineHeight = fonts.LineHeight
	}
	var raw []string
	if wrap == WrapPre {
		raw = preLines(content)
	} else {
		cols := max(width/m.Advance, 1)
		raw = greedyWrap(content, cols)
	}
	lines := make([]TextLine, 0, len(raw))
	for _, s := range raw {
		lines = append(lines, TextLine{
			Content: s,
			Width:   utf8.RuneCountInString(s) * m.Advance,
			Height:  m.LineHeight,
		})
	}
	return lines, nil
}

// preLines 保留空白，仅在显式换行处分行；制表符展开为 4 个空格。
func preLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\t", "    ")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// greedyWrap 先在空白处切分单词，逐词填充到 cols 列；超长单词按列数拆分。
func greedyWrap(content string, cols int) []string {
	words := strings.FieldsFunc(content, unicode.IsSpace)
	var lines []string
	var builder strings.Builder
	current := 0

	emit := func() {
		if builder.Len() == 0 {
			return
		}
		lines = append(lines, builder.String())
		builder.Reset()
		current = 0
	}

	for _, word := range words {
		n := utf8.RuneCountInString(word)
		if current > 0 && current+1+n > cols {
			emit()
		}
		if n <= cols {
			if current > 0 {
				builder.WriteByte(' ')
				current++
			}
			builder.WriteString(word)
			current += n
			continue
		}
		for _, chunk := range splitRunes(word, cols) {
			if current > 0 {
				emit()
			}
			builder.WriteString(chunk)
			current = utf8.RuneCountInString(chunk)
		}
	}
	emit()
	return lines
}

func splitRunes(word string, cols int) []string {
	runes := []rune(word)
	parts := make([]string, 0, len(runes)/cols+1)
	for len(runes) > cols {
		parts = append(parts, string(runes[:cols]))
		runes = runes[cols:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
