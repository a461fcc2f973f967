package layout

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/ByLCY/tessera/dom"
	"github.com/ByLCY/tessera/markup"
)

// stubTypesetter 是一个最小实现，仅用于测试：每个单词一行，每字符 5px，行高 10px。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width int, wrap string) ([]TextLine, error) {
	parts := strings.Fields(content)
	lines := make([]TextLine, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, TextLine{Content: p, Width: len(p) * 5, Height: 10})
	}
	return lines, nil
}

func buildTree(t *testing.T, html string, vp Viewport, ts Typesetter) (*dom.Document, *Tree) {
	t.Helper()
	doc, _, err := dom.Parse([]byte(html))
	if err != nil {
		t.Fatalf("解析文档失败: %v", err)
	}
	tree, err := Build(doc, vp, BuildOptions{Typesetter: ts})
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return doc, tree
}

// TestSimpleBlock 断言单个 div 的边框盒、内容盒与文本行位置。
func TestSimpleBlock(t *testing.T) {
	_, tree := buildTree(t, "<div>Hi</div>", Viewport{100, 100}, nil)
	if tree.Len() != 3 {
		t.Fatalf("期望 3 个盒子（根/div/文本），实际 %d", tree.Len())
	}
	root := tree.Box(tree.Root)
	if root.Rect != (Rect{0, 0, 100, 100}) {
		t.Fatalf("根盒应覆盖视口，实际 %+v", root.Rect)
	}
	div := tree.Box(root.Children[0])
	if div.Tag != "div" || div.Rect != (Rect{0, 0, 100, 21}) {
		t.Fatalf("div 盒不符合预期: %s %+v", div.Tag, div.Rect)
	}
	if div.Content != (Rect{4, 4, 92, 13}) {
		t.Fatalf("div 内容盒不符合预期: %+v", div.Content)
	}
	text := tree.Box(div.Children[0])
	if text.Kind != BoxText || len(text.Lines) != 1 {
		t.Fatalf("期望一个单行文本盒，实际 kind=%v lines=%d", text.Kind, len(text.Lines))
	}
	line := text.Lines[0]
	if line.Content != "Hi" || line.X != 4 || line.Y != 4 || line.Width != 14 || line.Height != 13 {
		t.Fatalf("文本行不符合预期: %+v", line)
	}
}

// TestZeroViewportYieldsEmptyTree 覆盖宽或高为 0 的视口。
func TestZeroViewportYieldsEmptyTree(t *testing.T) {
	for _, vp := range []Viewport{{0, 100}, {100, 0}, {0, 0}, {-5, 10}} {
		_, tree := buildTree(t, "<p>x</p>", vp, nil)
		if !tree.IsEmpty() || tree.Len() != 0 {
			t.Fatalf("视口 %+v 应得到空树，实际 %d 个盒子", vp, tree.Len())
		}
	}
}

// TestBlocksStackVertically 断言兄弟块依次向下排列，外边距不重叠折叠。
func TestBlocksStackVertically(t *testing.T) {
	_, tree := buildTree(t, "<p>a</p><p>b</p><p>c</p>", Viewport{200, 50}, &stubTypesetter{})
	root := tree.Box(tree.Root)
	if len(root.Children) != 3 {
		t.Fatalf("期望 3 个段落，实际 %d", len(root.Children))
	}
	prevBottom := 0
	for i, id := range root.Children {
		b := tree.Box(id)
		if b.Rect.Y < prevBottom {
			t.Fatalf("第 %d 个段落与前一个重叠: y=%d prevBottom=%d", i, b.Rect.Y, prevBottom)
		}
		prevBottom = b.Rect.Bottom()
	}
	// 内容超过视口高度时根盒随内容增长
	if root.Rect.Height < prevBottom {
		t.Fatalf("根盒高度 %d 未包含内容底部 %d", root.Rect.Height, prevBottom)
	}
}

// TestHiddenElementsProduceNoBoxes 覆盖 head/script/display:none 等被剪枝的节点。
func TestHiddenElementsProduceNoBoxes(t *testing.T) {
	_, tree := buildTree(t, `<head><title>t</title></head><script>x()</script><div style="display:none">gone</div><p>kept</p>`, Viewport{100, 100}, nil)
	root := tree.Box(tree.Root)
	if len(root.Children) != 1 || tree.Box(root.Children[0]).Tag != "p" {
		t.Fatalf("只应保留 p，实际子盒数 %d", len(root.Children))
	}
}

// TestExplicitWidthOverflow 覆盖显式宽度超过容器的情况。
func TestExplicitWidthOverflow(t *testing.T) {
	_, tree := buildTree(t, `<div style="width: 500px">x</div><div style="width:50%">y</div>`, Viewport{100, 100}, nil)
	root := tree.Box(tree.Root)
	wide := tree.Box(root.Children[0])
	if !wide.Overflow {
		t.Fatalf("宽 500px 的盒子应标记溢出")
	}
	half := tree.Box(root.Children[1])
	if half.Overflow || half.Rect.Width != 58 {
		t.Fatalf("50%% 宽度应为 50 + 8 内边距，实际 %d overflow=%v", half.Rect.Width, half.Overflow)
	}
}

// TestNarrowContainerClampsAndFlagsText 覆盖内容宽度不足一个字形时的钳制。
func TestNarrowContainerClampsAndFlagsText(t *testing.T) {
	_, tree := buildTree(t, `<div style="margin: 0 60px">word</div>`, Viewport{100, 100}, nil)
	div := tree.Box(tree.Box(tree.Root).Children[0])
	if div.Rect.Width != 0 || div.Content.Width != 0 {
		t.Fatalf("负宽度应钳制为 0，实际 rect=%d content=%d", div.Rect.Width, div.Content.Width)
	}
	text := tree.Box(div.Children[0])
	if !text.Overflow {
		t.Fatalf("无法容纳的文本应标记溢出")
	}
}

// TestWrapUsesContainerWidth 断言等宽排版按容器宽度折行。
func TestWrapUsesContainerWidth(t *testing.T) {
	_, tree := buildTree(t, `<p style="padding:0; width: 35px">aaaa bbbb ccccccccccc</p>`, Viewport{300, 100}, nil)
	p := tree.Box(tree.Box(tree.Root).Children[0])
	text := tree.Box(p.Children[0])
	got := []string{}
	for _, l := range text.Lines {
		got = append(got, l.Content)
	}
	want := "aaaa|bbbb|ccccc|ccccc|c"
	if strings.Join(got, "|") != want {
		t.Fatalf("折行结果 %q，期望 %q", strings.Join(got, "|"), want)
	}
	if text.Overflow {
		t.Fatalf("可折行的文本不应溢出")
	}
}

// TestPreservesWhitespaceInPre 断言 pre 中的显式换行被保留。
func TestPreservesWhitespaceInPre(t *testing.T) {
	_, tree := buildTree(t, "<pre>a  b\n  c</pre>", Viewport{300, 100}, nil)
	pre := tree.Box(tree.Box(tree.Root).Children[0])
	text := tree.Box(pre.Children[0])
	if len(text.Lines) != 2 || text.Lines[0].Content != "a  b" || text.Lines[1].Content != "  c" {
		t.Fatalf("pre 排版不符合预期: %+v", text.Lines)
	}
}

// TestImageIntrinsicSize 断言 img 使用属性给出的固有尺寸。
func TestImageIntrinsicSize(t *testing.T) {
	_, tree := buildTree(t, `<img width="40" height="30">`, Viewport{300, 100}, nil)
	img := tree.Box(tree.Box(tree.Root).Children[0])
	if img.Kind != BoxImage || img.Rect.Width != 42 || img.Rect.Height != 32 {
		t.Fatalf("img 盒不符合预期: kind=%v rect=%+v", img.Kind, img.Rect)
	}
}

// TestStyleDiagnosticsCollected 断言样式问题被收集而不是中断布局。
func TestStyleDiagnosticsCollected(t *testing.T) {
	doc, _, err := dom.Parse([]byte(`<div style="width: banana">x</div>`))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	var diags []markup.Diagnostic
	if _, err := Build(doc, Viewport{100, 100}, BuildOptions{Diagnostics: &diags}); err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("期望 1 条诊断，实际 %d", len(diags))
	}
}

var fragments = []string{
	"<div>", "</div>", "<p>", "</p>", "<section>", "</section>", "<ul>", "<li>", "</ul>",
	"hello", "a much longer run of words that will wrap", " ", "<br>", "<img>",
	`<div style="width: 300px">`, `<div style="margin: 0 40px">`, `<p style="height: 5px">`,
	`<div style="padding: 30px">`, "supercalifragilisticexpialidocious", "<pre>x\n  y</pre>",
}

func genDocument(t *rapid.T) string {
	return strings.Join(rapid.SliceOfN(rapid.SampledFrom(fragments), 1, 40).Draw(t, "parts"), "")
}

// TestLayoutContainment 性质测试：未标记溢出的盒子一定位于父盒内容区域内。
func TestLayoutContainment(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		html := genDocument(t)
		vp := Viewport{
			Width:  rapid.IntRange(0, 400).Draw(t, "w"),
			Height: rapid.IntRange(0, 300).Draw(t, "h"),
		}
		doc, _, err := dom.Parse([]byte(html))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		tree, err := Build(doc, vp, BuildOptions{})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		for id := range tree.Boxes {
			b := tree.Box(BoxID(id))
			if b.Rect.Width < 0 || b.Rect.Height < 0 || b.Content.Width < 0 || b.Content.Height < 0 {
				t.Fatalf("box %d has negative size: %+v", id, b.Rect)
			}
			if b.Parent == NoBox || b.Overflow {
				continue
			}
			parent := tree.Box(b.Parent)
			if !parent.Content.Contains(b.Rect) {
				t.Fatalf("box %d %+v escapes parent content %+v", id, b.Rect, parent.Content)
			}
		}
	})
}

// TestLayoutMirrorsDOM 性质测试：盒树结构与过滤后的 DOM 同构（父子关系一致）。
func TestLayoutMirrorsDOM(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc, _, err := dom.Parse([]byte(genDocument(t)))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		tree, err := Build(doc, Viewport{320, 240}, BuildOptions{})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		for id := range tree.Boxes {
			b := tree.Box(BoxID(id))
			if b.Parent == NoBox {
				continue
			}
			parentNode := tree.Box(b.Parent).Node
			if doc.Node(b.Node).Parent != parentNode {
				t.Fatalf("box %d node %d: dom parent %d, box parent node %d", id, b.Node, doc.Node(b.Node).Parent, parentNode)
			}
		}
	})
}
