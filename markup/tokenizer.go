package markup

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// Diagnostics collects recovered errors while a token stream is consumed.
// It is complete once the stream has yielded EOF.
type Diagnostics struct {
	items []Diagnostic
}

// All returns the diagnostics recorded so far.
func (d *Diagnostics) All() []Diagnostic {
	if d == nil {
		return nil
	}
	return d.items
}

func (d *Diagnostics) add(offset int, msg string) {
	d.items = append(d.items, Diagnostic{Offset: offset, Message: msg})
}

// Tokenize returns a lazy token sequence over src. The sequence is single
// use: ranging over it a second time yields nothing. It always ends with
// exactly one EOF and never fails.
func Tokenize(src []byte) (iter.Seq[Token], *Diagnostics) {
	diags := &Diagnostics{}
	z := html.NewTokenizer(bytes.NewReader(src))
	offset := 0
	done := false

	seq := func(yield func(Token) bool) {
		for !done {
			tt := z.Next()
			raw := z.Raw()
			start := offset
			offset += len(raw)

			var tok Token
			switch tt {
			case html.ErrorToken:
				if tag, n, ok := recoverTag(raw, start, diags); ok {
					// 引号未闭合：标签在第一个 '>' 处结束，其后重新分词
					offset = start + n
					z = html.NewTokenizer(bytes.NewReader(src[offset:]))
					if !yield(tag) {
						return
					}
					continue
				}
				done = true
				if len(raw) > 0 {
					// 输入在标签中途结束：按文本处理
					diags.add(start, "unterminated tag treated as text")
					if !yield(Text{Content: string(raw)}) {
						return
					}
				}
				yield(EOF{})
				return
			case html.TextToken:
				tok = Text{Content: string(z.Text())}
			case html.StartTagToken, html.SelfClosingTagToken:
				tok = readStartTag(z, tt == html.SelfClosingTagToken, start, diags)
			case html.EndTagToken:
				name, _ := z.TagName()
				tok = EndTag{Name: string(name)}
			case html.CommentToken:
				tok = Comment{Content: string(z.Text())}
			case html.DoctypeToken:
				tok = Comment{Content: string(z.Text()), Doctype: true}
			default:
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
	return seq, diags
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[Token]) []Token {
	var out []Token
	for tok := range seq {
		out = append(out, tok)
	}
	return out
}

func readStartTag(z *html.Tokenizer, selfClosing bool, offset int, diags *Diagnostics) StartTag {
	name, more := z.TagName()
	tag := StartTag{Name: string(name), SelfClosing: selfClosing}
	seen := map[string]bool{}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		k := string(key)
		if !validAttrKey(k) {
			diags.add(offset, fmt.Sprintf("dropped malformed attribute %q on <%s>", k, tag.Name))
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		tag.Attrs = append(tag.Attrs, Attr{Key: k, Val: string(val)})
	}
	return tag
}

// recoverTag rescues a start tag whose quoted attribute value never closes.
// The tag ends at the first '>' in raw; the broken attribute and everything
// after it inside the tag are dropped. n is the number of raw bytes consumed.
func recoverTag(raw []byte, offset int, diags *Diagnostics) (tag StartTag, n int, ok bool) {
	if len(raw) < 2 || raw[0] != '<' || !isASCIILetter(raw[1]) {
		return StartTag{}, 0, false
	}
	end := bytes.IndexByte(raw, '>')
	if end < 0 {
		return StartTag{}, 0, false
	}
	cut := unterminatedAttr(raw[:end])
	if cut < 0 {
		cut = end
	}
	head := append(bytes.Clone(raw[:cut]), '>')
	z := html.NewTokenizer(bytes.NewReader(head))
	tt := z.Next()
	if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return StartTag{}, 0, false
	}
	tag = readStartTag(z, tt == html.SelfClosingTagToken, offset, diags)
	diags.add(offset, fmt.Sprintf("dropped attribute with unterminated quote on <%s>", tag.Name))
	return tag, end + 1, true
}

// unterminatedAttr returns where the attribute holding the first unmatched
// quote in tag starts, or -1. It never cuts into the tag name.
func unterminatedAttr(tag []byte) int {
	nameEnd := 1
	for nameEnd < len(tag) && !isSpace(tag[nameEnd]) && tag[nameEnd] != '/' {
		nameEnd++
	}
	for i := nameEnd; i < len(tag); i++ {
		q := tag[i]
		if q != '"' && q != '\'' {
			continue
		}
		if j := bytes.IndexByte(tag[i+1:], q); j >= 0 {
			i += j + 1
			continue
		}
		k := i
		for k > nameEnd && isSpace(tag[k-1]) {
			k--
		}
		if k > nameEnd && tag[k-1] == '=' {
			k--
			for k > nameEnd && isSpace(tag[k-1]) {
				k--
			}
		}
		for k > nameEnd && !isSpace(tag[k-1]) {
			k--
		}
		return k
	}
	return -1
}

func isASCIILetter(c byte) bool { return c|0x20 >= 'a' && c|0x20 <= 'z' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r'
}

func validAttrKey(k string) bool {
	if k == "" {
		return false
	}
	return !strings.ContainsAny(k, "\"'<=/` \t\n\f\r")
}
