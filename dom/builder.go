package dom

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/markup"
)

// MaxDepth bounds element nesting. Deeper elements are attached to the
// deepest open element instead of being pushed.
const MaxDepth = 256

// Parse tokenizes src and builds its tree. It fails only on an empty buffer.
func Parse(src []byte) (*Document, []markup.Diagnostic, error) {
	if len(src) == 0 {
		return nil, nil, fmt.Errorf("dom: empty document: %w", fault.ErrInvalidInput)
	}
	seq, tokDiags := markup.Tokenize(src)
	doc, buildDiags := Build(seq)
	diags := append(tokDiags.All(), buildDiags...)
	return doc, diags, nil
}

// Build consumes tokens and returns the tree. It never rejects input: an end
// tag without a matching open element is ignored, and elements still open at
// EOF are closed in stack order. Builder diagnostics carry Offset -1.
func Build(tokens iter.Seq[markup.Token]) (*Document, []markup.Diagnostic) {
	b := &builder{
		doc:   &Document{Nodes: []Node{{Kind: KindDocument, Parent: NoNode}}},
		stack: []NodeID{0},
	}
	for tok := range tokens {
		if !b.consume(tok) {
			break
		}
	}
	return b.doc, b.diags
}

type builder struct {
	doc   *Document
	stack []NodeID
	diags []markup.Diagnostic
}

func (b *builder) consume(tok markup.Token) bool {
	switch t := tok.(type) {
	case markup.StartTag:
		b.startTag(t)
	case markup.EndTag:
		b.endTag(t.Name)
	case markup.Text:
		b.text(t.Content)
	case markup.Comment:
		// 注释不进入文档树
	case markup.EOF:
		return false
	}
	return true
}

func (b *builder) top() NodeID { return b.stack[len(b.stack)-1] }

func (b *builder) topTag() string { return b.doc.Nodes[b.top()].Tag }

func (b *builder) appendNode(n Node) NodeID {
	parent := b.top()
	n.Parent = parent
	id := NodeID(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, n)
	b.doc.Nodes[parent].Children = append(b.doc.Nodes[parent].Children, id)
	return id
}

func (b *builder) startTag(t markup.StartTag) {
	// 同级的 p / li / option 隐式闭合前一个
	if closesSibling(t.Name) && b.topTag() == t.Name {
		b.stack = b.stack[:len(b.stack)-1]
	}
	id := b.appendNode(Node{Kind: KindElement, Tag: t.Name, Attrs: t.Attrs})
	if IsVoid(t.Name) || t.SelfClosing {
		return
	}
	if len(b.stack) > MaxDepth {
		b.diag(fmt.Sprintf("nesting deeper than %d, <%s> not opened", MaxDepth, t.Name))
		return
	}
	b.stack = append(b.stack, id)
}

func (b *builder) endTag(name string) {
	for i := len(b.stack) - 1; i > 0; i-- {
		if b.doc.Nodes[b.stack[i]].Tag == name {
			b.stack = b.stack[:i]
			return
		}
	}
	if !IsVoid(name) {
		b.diag(fmt.Sprintf("unmatched end tag </%s> ignored", name))
	}
}

func (b *builder) text(content string) {
	if content == "" {
		return
	}
	if strings.TrimSpace(content) == "" && !b.preserveSpace() {
		return
	}
	parent := &b.doc.Nodes[b.top()]
	if n := len(parent.Children); n > 0 {
		last := &b.doc.Nodes[parent.Children[n-1]]
		if last.Kind == KindText {
			last.Text += content
			return
		}
	}
	b.appendNode(Node{Kind: KindText, Text: content})
}

func (b *builder) preserveSpace() bool {
	for _, id := range b.stack {
		switch b.doc.Nodes[id].Tag {
		case "pre", "textarea":
			return true
		}
	}
	return false
}

func (b *builder) diag(msg string) {
	b.diags = append(b.diags, markup.Diagnostic{Offset: -1, Message: msg})
}

// IsVoid reports whether name is an element that never has content.
func IsVoid(name string) bool {
	switch atom.Lookup([]byte(name)) {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
		atom.Input, atom.Link, atom.Meta, atom.Source, atom.Track, atom.Wbr:
		return true
	}
	return false
}

func closesSibling(name string) bool {
	switch atom.Lookup([]byte(name)) {
	case atom.P, atom.Li, atom.Option:
		return true
	}
	return false
}
