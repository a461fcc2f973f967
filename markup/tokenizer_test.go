package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func tokens(t *testing.T, src string) ([]Token, []Diagnostic) {
	t.Helper()
	seq, diags := Tokenize([]byte(src))
	toks := Collect(seq)
	require.NotEmpty(t, toks)
	require.Equal(t, EOF{}, toks[len(toks)-1], "stream must end with EOF")
	return toks, diags.All()
}

func TestTokenizeBasic(t *testing.T) {
	toks, diags := tokens(t, `<!DOCTYPE html><div id="a" class=b>Hi &amp; bye</div><!-- note --><br/>`)
	require.Empty(t, diags)
	require.Len(t, toks, 7)

	assert.Equal(t, Comment{Content: "html", Doctype: true}, toks[0])
	assert.Equal(t, StartTag{Name: "div", Attrs: []Attr{{"id", "a"}, {"class", "b"}}}, toks[1])
	assert.Equal(t, Text{Content: "Hi & bye"}, toks[2])
	assert.Equal(t, EndTag{Name: "div"}, toks[3])
	assert.Equal(t, Comment{Content: " note "}, toks[4])
	assert.Equal(t, StartTag{Name: "br", SelfClosing: true}, toks[5])
}

func TestTokenizeLowercasesNames(t *testing.T) {
	toks, _ := tokens(t, `<DIV ID="x"></Div>`)
	assert.Equal(t, StartTag{Name: "div", Attrs: []Attr{{"id", "x"}}}, toks[0])
	assert.Equal(t, EndTag{Name: "div"}, toks[1])
}

func TestTokenizeRawText(t *testing.T) {
	toks, _ := tokens(t, `<script>if (a < b && c) { x = "</p>"; }</script><p>ok</p>`)
	require.GreaterOrEqual(t, len(toks), 4)
	assert.Equal(t, StartTag{Name: "script"}, toks[0])
	assert.Equal(t, Text{Content: `if (a < b && c) { x = "</p>"; }`}, toks[1])
	assert.Equal(t, EndTag{Name: "script"}, toks[2])
	assert.Equal(t, StartTag{Name: "p"}, toks[3])
}

func TestTokenizeUnterminatedTagBecomesText(t *testing.T) {
	toks, diags := tokens(t, `<p>hello</p><div class="x`)
	require.Len(t, toks, 5)
	assert.Equal(t, Text{Content: `<div class="x`}, toks[3])
	require.Len(t, diags, 1)
	assert.Equal(t, 12, diags[0].Offset)
}

func TestTokenizeMismatchedQuoteEndsTagAtFirstBracket(t *testing.T) {
	toks, diags := tokens(t, `<div class='x>Hi</div><p>after</p>`)
	assert.Equal(t, []Token{
		StartTag{Name: "div"},
		Text{Content: "Hi"},
		EndTag{Name: "div"},
		StartTag{Name: "p"},
		Text{Content: "after"},
		EndTag{Name: "p"},
		EOF{},
	}, toks)
	require.Len(t, diags, 1)
	assert.Equal(t, 0, diags[0].Offset)
	assert.Contains(t, diags[0].Message, "unterminated quote")
}

func TestTokenizeMismatchedQuoteKeepsEarlierAttributes(t *testing.T) {
	toks, diags := tokens(t, `<p>a</p><b id="k" title = "t>bold</b><i>c</i>`)
	require.Len(t, toks, 10)
	assert.Equal(t, StartTag{Name: "b", Attrs: []Attr{{"id", "k"}}}, toks[3])
	assert.Equal(t, Text{Content: "bold"}, toks[4])
	assert.Equal(t, EndTag{Name: "b"}, toks[5])
	assert.Equal(t, StartTag{Name: "i"}, toks[6])
	require.Len(t, diags, 1)
	assert.Equal(t, 8, diags[0].Offset)
}

func TestTokenizeDropsMalformedAttribute(t *testing.T) {
	toks, diags := tokens(t, `<p "bad=1 ok="2">x</p>`)
	start, ok := toks[0].(StartTag)
	require.True(t, ok)
	_, has := start.Attr("ok")
	assert.True(t, has)
	for _, a := range start.Attrs {
		assert.NotContains(t, a.Key, `"`)
	}
	assert.NotEmpty(t, diags)
}

func TestTokenizeDuplicateAttributeKeepsFirst(t *testing.T) {
	toks, _ := tokens(t, `<p id="one" id="two">`)
	start := toks[0].(StartTag)
	require.Len(t, start.Attrs, 1)
	assert.Equal(t, "one", start.Attrs[0].Val)
}

func TestTokenizeEmptyInput(t *testing.T) {
	toks, diags := tokens(t, "")
	assert.Equal(t, []Token{EOF{}}, toks)
	assert.Empty(t, diags)
}

func TestTokenizeIsSingleUse(t *testing.T) {
	seq, _ := Tokenize([]byte("<p>a</p>"))
	first := Collect(seq)
	assert.Len(t, first, 4)
	assert.Empty(t, Collect(seq))
}

func TestTokenizeStopsEarly(t *testing.T) {
	seq, _ := Tokenize([]byte("<a><b><c>"))
	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

// 任意字节输入都必须以唯一的 EOF 结束，且不会 panic。
func TestTokenizeAlwaysTerminates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SliceOf(rapid.SampledFrom([]byte("<>/=\"' abc!-\n&;#x"))).Draw(t, "src")
		seq, _ := Tokenize(src)
		toks := Collect(seq)
		if len(toks) == 0 {
			t.Fatalf("no tokens")
		}
		eofs := 0
		for _, tok := range toks {
			if _, ok := tok.(EOF); ok {
				eofs++
			}
		}
		if eofs != 1 {
			t.Fatalf("expected exactly one EOF, got %d", eofs)
		}
		if _, ok := toks[len(toks)-1].(EOF); !ok {
			t.Fatalf("last token is %v", toks[len(toks)-1])
		}
	})
}
