// Package markup turns HTML bytes into a lazy, forward-only token stream.
//
// The tokenizer is lenient: malformed markup never stops the stream, it is
// recovered locally and reported as a Diagnostic.
package markup

import (
	"fmt"
	"strings"
)

// Token is one lexical unit. The concrete type is one of StartTag, EndTag,
// Text, Comment or EOF.
type Token interface {
	token()
	String() string
}

// Attr is one attribute as written in the start tag. Keys are lower case.
type Attr struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// StartTag opens an element. Attrs keeps source order; a repeated key keeps
// its first occurrence.
type StartTag struct {
	Name        string
	Attrs       []Attr
	SelfClosing bool
}

// EndTag closes an element.
type EndTag struct {
	Name string
}

// Text is character data with entities decoded. Raw-text elements such as
// script carry their body verbatim.
type Text struct {
	Content string
}

// Comment is a comment or a doctype declaration.
type Comment struct {
	Content string
	Doctype bool
}

// EOF terminates every stream exactly once.
type EOF struct{}

func (StartTag) token() {}
func (EndTag) token()   {}
func (Text) token()     {}
func (Comment) token()  {}
func (EOF) token()      {}

func (t StartTag) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(t.Name)
	for _, a := range t.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Key, a.Val)
	}
	if t.SelfClosing {
		b.WriteString("/")
	}
	b.WriteString(">")
	return b.String()
}

func (t EndTag) String() string { return "</" + t.Name + ">" }
func (t Text) String() string   { return fmt.Sprintf("text(%q)", t.Content) }

func (t Comment) String() string {
	if t.Doctype {
		return "<!DOCTYPE " + t.Content + ">"
	}
	return "<!--" + t.Content + "-->"
}

func (EOF) String() string { return "EOF" }

// Attr returns the value of key and whether it is present.
func (t StartTag) Attr(key string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Diagnostic records a recovered markup error at a byte offset.
type Diagnostic struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string { return fmt.Sprintf("%d: %s", d.Offset, d.Message) }
