// Package dom holds the document tree built from a markup token stream.
//
// Nodes live in a flat arena owned by the Document and refer to each other by
// NodeID, so the tree has no pointer cycles and can be walked or validated
// without recursion into shared state.
package dom

import (
	"fmt"
	"strings"

	"github.com/ByLCY/tessera/markup"
)

// NodeID indexes Document.Nodes.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Kind distinguishes the node variants.
type Kind uint8

const (
	KindDocument Kind = iota
	KindElement
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one arena entry. Tag and Attrs are set for elements, Text for text nodes.
type Node struct {
	Kind     Kind          `json:"kind"`
	Parent   NodeID        `json:"parent"`
	Children []NodeID      `json:"children,omitempty"`
	Tag      string        `json:"tag,omitempty"`
	Attrs    []markup.Attr `json:"attrs,omitempty"`
	Text     string        `json:"text,omitempty"`
}

// Document owns every node. Nodes[0] is the root.
type Document struct {
	Nodes []Node `json:"nodes"`
}

// Root is always the first node.
func (d *Document) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (d *Document) Len() int { return len(d.Nodes) }

// Node returns the node with the given id.
func (d *Document) Node(id NodeID) *Node { return &d.Nodes[id] }

// Attr returns an attribute of an element node.
func (d *Document) Attr(id NodeID, key string) (string, bool) {
	for _, a := range d.Nodes[id].Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func (d *Document) Walk(fn func(id NodeID, depth int) bool) {
	if len(d.Nodes) == 0 {
		return
	}
	type frame struct {
		id    NodeID
		depth int
	}
	stack := []frame{{d.Root(), 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.id, top.depth) {
			continue
		}
		kids := d.Nodes[top.id].Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], top.depth + 1})
		}
	}
}

// TextContent concatenates the text nodes below id in document order.
func (d *Document) TextContent(id NodeID) string {
	var b strings.Builder
	var visit func(NodeID)
	visit = func(n NodeID) {
		node := &d.Nodes[n]
		if node.Kind == KindText {
			b.WriteString(node.Text)
			return
		}
		for _, c := range node.Children {
			visit(c)
		}
	}
	visit(id)
	return b.String()
}

// Title returns the collapsed text of the first title element.
func (d *Document) Title() string {
	title := ""
	found := false
	d.Walk(func(id NodeID, _ int) bool {
		if found {
			return false
		}
		n := &d.Nodes[id]
		if n.Kind == KindElement && n.Tag == "title" {
			title = CollapseWhitespace(d.TextContent(id))
			found = true
			return false
		}
		return true
	})
	return title
}

// Script is one script element handed to the script host.
type Script struct {
	Node   NodeID `json:"node"`
	Src    string `json:"src,omitempty"`
	Source string `json:"source,omitempty"`
}

// Scripts lists script elements in document order.
func (d *Document) Scripts() []Script {
	var out []Script
	d.Walk(func(id NodeID, _ int) bool {
		n := &d.Nodes[id]
		if n.Kind != KindElement || n.Tag != "script" {
			return true
		}
		src, _ := d.Attr(id, "src")
		out = append(out, Script{Node: id, Src: src, Source: d.TextContent(id)})
		return false
	})
	return out
}

// Validate checks the structural invariants: a single Document root, mutual
// parent/child consistency and every node reachable exactly once.
func (d *Document) Validate() error {
	if len(d.Nodes) == 0 {
		return fmt.Errorf("dom: empty arena")
	}
	root := &d.Nodes[0]
	if root.Kind != KindDocument || root.Parent != NoNode {
		return fmt.Errorf("dom: node 0 is not a document root")
	}
	seen := make([]bool, len(d.Nodes))
	seen[0] = true
	for i := range d.Nodes {
		id := NodeID(i)
		n := &d.Nodes[i]
		if i > 0 {
			if n.Kind == KindDocument {
				return fmt.Errorf("dom: node %d is a second document root", i)
			}
			if n.Parent < 0 || int(n.Parent) >= len(d.Nodes) {
				return fmt.Errorf("dom: node %d has invalid parent %d", i, n.Parent)
			}
			if !contains(d.Nodes[n.Parent].Children, id) {
				return fmt.Errorf("dom: node %d missing from children of %d", i, n.Parent)
			}
		}
		if n.Kind == KindText && len(n.Children) > 0 {
			return fmt.Errorf("dom: text node %d has children", i)
		}
		for _, c := range n.Children {
			if c <= 0 || int(c) >= len(d.Nodes) {
				return fmt.Errorf("dom: node %d has invalid child %d", i, c)
			}
			if d.Nodes[c].Parent != id {
				return fmt.Errorf("dom: child %d of %d points at parent %d", c, i, d.Nodes[c].Parent)
			}
			if seen[c] {
				return fmt.Errorf("dom: node %d listed twice", c)
			}
			seen[c] = true
		}
	}
	// 子节点至多被列出一次，从根出发的遍历必然终止；遍历不到的节点处于环中
	reached := 0
	d.Walk(func(NodeID, int) bool {
		reached++
		return true
	})
	if reached != len(d.Nodes) {
		return fmt.Errorf("dom: %d of %d nodes unreachable from root", len(d.Nodes)-reached, len(d.Nodes))
	}
	return nil
}

// CollapseWhitespace folds runs of white space to one space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func contains(ids []NodeID, id NodeID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}
