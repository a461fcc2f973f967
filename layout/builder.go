package layout

import (
	"fmt"

	"github.com/ByLCY/tessera/dom"
	"github.com/ByLCY/tessera/markup"
	"github.com/ByLCY/tessera/style"
)

// Build 对 DOM 做一次自顶向下的块级流式布局，生成与过滤后的 DOM 同构的盒树。
// 视口宽或高为 0 时返回空树；计算出的负尺寸或越界尺寸一律钳制，不会报错。
func Build(doc *dom.Document, vp Viewport, opts BuildOptions) (*Tree, error) {
	if doc == nil || doc.Len() == 0 {
		return nil, fmt.Errorf("layout: 文档为空")
	}
	tree := &Tree{Viewport: vp, Root: NoBox}
	if vp.IsEmpty() {
		return tree, nil
	}
	vp.Width = clamp(vp.Width)
	vp.Height = clamp(vp.Height)
	tree.Viewport = vp

	ts := opts.Typesetter
	if ts == nil {
		ts = DefaultTypesetter()
	}
	b := &treeBuilder{doc: doc, tree: tree, typesetter: ts, opts: opts}

	rootStyle := style.Initial()
	viewRect := Rect{X: 0, Y: 0, Width: vp.Width, Height: vp.Height}
	root := b.push(Box{
		Kind:    BoxBlock,
		Node:    doc.Root(),
		Parent:  NoBox,
		Rect:    viewRect,
		Content: viewRect,
		Style:   rootStyle,
	})
	tree.Root = root

	// 根上下文从视口顶部开始排版。
	ctx := &flowContext{
		x:       0,
		width:   vp.Width,
		cursorY: 0,
		parent:  root,
		style:   rootStyle,
	}
	if err := b.layoutChildren(doc.Root(), ctx); err != nil {
		return nil, err
	}
	// 根盒至少覆盖视口，内容更长时随内容增长。
	h := max(vp.Height, ctx.cursorY)
	tree.Boxes[root].Rect.Height = h
	tree.Boxes[root].Content.Height = h
	b.markOverflow(root)

	if n := len(b.diags); n > 0 {
		opts.logger().Debug("layout diagnostics", "count", n)
		if opts.Diagnostics != nil {
			*opts.Diagnostics = append(*opts.Diagnostics, b.diags...)
		}
	}
	return tree, nil
}

// flowContext 描述一个容器的内容区域与当前的纵向游标。
type flowContext struct {
	x       int
	width   int
	cursorY int
	parent  BoxID
	style   style.Computed
}

type treeBuilder struct {
	doc        *dom.Document
	tree       *Tree
	typesetter Typesetter
	opts       BuildOptions
	diags      []markup.Diagnostic
}

func (b *treeBuilder) push(box Box) BoxID {
	id := BoxID(len(b.tree.Boxes))
	b.tree.Boxes = append(b.tree.Boxes, box)
	if box.Parent != NoBox {
		parent := &b.tree.Boxes[box.Parent]
		parent.Children = append(parent.Children, id)
	}
	return id
}

// layoutChildren 依次处理 node 的子节点：元素生成块盒，文本生成文本盒。
func (b *treeBuilder) layoutChildren(node dom.NodeID, ctx *flowContext) error {
	for _, child := range b.doc.Node(node).Children {
		n := b.doc.Node(child)
		switch n.Kind {
		case dom.KindText:
			if err := b.layoutText(child, ctx); err != nil {
				return err
			}
		case dom.KindElement:
			if err := b.layoutElement(child, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *treeBuilder) layoutElement(node dom.NodeID, ctx *flowContext) error {
	computed, diags := style.Resolve(b.doc, node, ctx.style)
	b.diags = append(b.diags, diags...)
	if computed.Display == style.DisplayNone {
		return nil
	}
	tag := b.doc.Node(node).Tag

	margin := computed.Margin.Resolve(ctx.width)
	padding := computed.Padding.Resolve(ctx.width)
	border := clamp(computed.BorderWidth)
	frame := padding.Add(style.Insets{Top: border, Right: border, Bottom: border, Left: border})

	x := add(ctx.x, margin.Left)
	y := add(ctx.cursorY, margin.Top)

	// 宽度：显式宽度为内容宽度；auto 时占满容器减去左右外边距。
	var width int
	if computed.Width.IsAuto() {
		width = clamp(ctx.width - margin.Horizontal())
	} else {
		width = add(computed.Width.Resolve(ctx.width), frame.Horizontal())
	}

	kind := BoxBlock
	if tag == "img" {
		kind = BoxImage
	}
	content := Rect{
		X:     add(x, frame.Left),
		Y:     add(y, frame.Top),
		Width: clamp(width - frame.Horizontal()),
	}
	id := b.push(Box{
		Kind:    kind,
		Node:    node,
		Tag:     tag,
		Parent:  ctx.parent,
		Rect:    Rect{X: x, Y: y, Width: width},
		Content: content,
		Style:   computed,
	})

	inner := &flowContext{
		x:       content.X,
		width:   content.Width,
		cursorY: content.Y,
		parent:  id,
		style:   computed,
	}
	if kind == BoxBlock {
		if err := b.layoutChildren(node, inner); err != nil {
			return err
		}
	}

	// 高度：显式高度优先（百分比视为 auto），否则为子内容的纵向范围。
	var contentHeight int
	if !computed.Height.IsAuto() && computed.Height.Unit != style.UnitPercent {
		contentHeight = computed.Height.Resolve(0)
	} else {
		contentHeight = clamp(inner.cursorY - content.Y)
	}
	box := &b.tree.Boxes[id]
	box.Content.Height = contentHeight
	box.Rect.Height = add(contentHeight, frame.Vertical())
	b.markOverflow(id)

	ctx.cursorY = add(box.Rect.Bottom(), margin.Bottom)
	return nil
}

func (b *treeBuilder) layoutText(node dom.NodeID, ctx *flowContext) error {
	raw := b.doc.Node(node).Text
	wrap := WrapNormal
	content := raw
	if ctx.style.PreserveWS {
		wrap = WrapPre
	} else {
		content = dom.CollapseWhitespace(raw)
	}
	if content == "" {
		return nil
	}
	lines, err := b.typesetter.LayoutLines(content, ctx.width, wrap)
	if err != nil {
		return fmt.Errorf("layout: 文本排版失败: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}

	x, y := ctx.x, ctx.cursorY
	width, height := 0, 0
	for i := range lines {
		lines[i].Width = clamp(lines[i].Width)
		lines[i].Height = clamp(lines[i].Height)
		lines[i].X = x
		lines[i].Y = add(y, height)
		width = max(width, lines[i].Width)
		height = add(height, lines[i].Height)
	}
	rect := Rect{X: x, Y: y, Width: width, Height: height}
	b.push(Box{
		Kind:    BoxText,
		Node:    node,
		Parent:  ctx.parent,
		Rect:    rect,
		Content: rect,
		Style:   style.Computed{Display: style.DisplayBlock, Color: ctx.style.Color},
		Lines:   lines,
	})
	ctx.cursorY = add(y, height)
	return nil
}

// markOverflow 在父盒尺寸确定后，标记未被其内容区域包含的子盒。
func (b *treeBuilder) markOverflow(parent BoxID) {
	p := &b.tree.Boxes[parent]
	for _, c := range p.Children {
		child := &b.tree.Boxes[c]
		if !p.Content.Contains(child.Rect) {
			child.Overflow = true
		}
	}
}

// clamp 将像素值钳制到 [0, style.MaxPx]。
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > style.MaxPx {
		return style.MaxPx
	}
	return v
}

// add 是饱和加法：结果被钳制到 [0, style.MaxPx]。
func add(a, b int) int { return clamp(a + b) }
