package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/tessera/dom"
)

func firstElement(t *testing.T, src string) (*dom.Document, dom.NodeID) {
	t.Helper()
	doc, _, err := dom.Parse([]byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, doc.Node(doc.Root()).Children)
	return doc, doc.Node(doc.Root()).Children[0]
}

func TestParseDeclarations(t *testing.T) {
	decls, problems := ParseDeclarations(`color: #f00; margin: 4px 8px ; background: rgb(1, 2, 3) !important;;`)
	require.Empty(t, problems)
	require.Len(t, decls, 3)
	assert.Equal(t, "color", decls[0].Property)
	assert.Equal(t, "margin", decls[1].Property)
	assert.Len(t, decls[1].Values, 2)
	assert.True(t, decls[2].Important)
	require.NotNil(t, decls[2].Values[0].Func)
	assert.Equal(t, "rgb", decls[2].Values[0].Func.Name)
}

func TestParseDeclarationsIsLenient(t *testing.T) {
	decls, problems := ParseDeclarations(`color: red; width 10px; @bad: 1; height: 20px`)
	require.Len(t, decls, 2)
	assert.Equal(t, "color", decls[0].Property)
	assert.Equal(t, "height", decls[1].Property)
	assert.Len(t, problems, 2)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"#fff", RGB(255, 255, 255)},
		{"#1234", Color{0x11, 0x22, 0x33, 0x44}},
		{"#a0b1c2", RGB(0xa0, 0xb1, 0xc2)},
		{"#a0b1c280", Color{0xa0, 0xb1, 0xc2, 0x80}},
		{"Navy", RGB(0, 0, 128)},
		{"transparent", Transparent},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseColor("#12")
	assert.Error(t, err)
}

func TestParseLength(t *testing.T) {
	l, ok := ParseLength("50%")
	require.True(t, ok)
	assert.Equal(t, 100, l.Resolve(200))

	l, ok = ParseLength("2em")
	require.True(t, ok)
	assert.Equal(t, 26, l.Resolve(0))

	l, ok = ParseLength("-5px")
	require.True(t, ok)
	assert.Equal(t, 0, l.Resolve(0), "negative lengths clamp to zero")

	_, ok = ParseLength("wide")
	assert.False(t, ok)
}

func TestResolveDefaults(t *testing.T) {
	doc, id := firstElement(t, `<h1>x</h1>`)
	c, diags := Resolve(doc, id, Initial())
	assert.Empty(t, diags)
	assert.Equal(t, DisplayBlock, c.Display)
	assert.Equal(t, RGB(169, 192, 248), c.Background)
	assert.Equal(t, TextColor, c.Color)
	assert.Equal(t, Insets{6, 6, 6, 6}, c.Padding.Resolve(100))
}

func TestResolveHidden(t *testing.T) {
	for _, src := range []string{`<script>x</script>`, `<head></head>`, `<div hidden>x</div>`, `<p style="display: none">x</p>`} {
		doc, id := firstElement(t, src)
		c, _ := Resolve(doc, id, Initial())
		assert.Equal(t, DisplayNone, c.Display, src)
	}
}

func TestResolveInlineStyle(t *testing.T) {
	doc, id := firstElement(t, `<div style="background:#000; color: white; width: 50%; padding: 1px 2px 3px 4px; border: 2px solid red; margin-left: 10px; bogus: 1">x</div>`)
	c, diags := Resolve(doc, id, Initial())
	assert.Equal(t, RGB(0, 0, 0), c.Background)
	assert.Equal(t, RGB(255, 255, 255), c.Color)
	assert.Equal(t, 100, c.Width.Resolve(200))
	assert.Equal(t, Insets{1, 2, 3, 4}, c.Padding.Resolve(0))
	assert.Equal(t, 10, c.Margin.Left.Resolve(0))
	assert.Equal(t, 2, c.BorderWidth)
	assert.Equal(t, RGB(255, 0, 0), c.BorderColor)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "bogus")
}

func TestResolveImageIntrinsicSize(t *testing.T) {
	doc, id := firstElement(t, `<img width="40" height="30">`)
	c, _ := Resolve(doc, id, Initial())
	assert.Equal(t, 40, c.Width.Resolve(0))
	assert.Equal(t, 30, c.Height.Resolve(0))
}

func TestColorInherits(t *testing.T) {
	doc, id := firstElement(t, `<div style="color: #123456"><p>x</p></div>`)
	parent, _ := Resolve(doc, id, Initial())
	child, _ := Resolve(doc, doc.Node(id).Children[0], parent)
	assert.Equal(t, RGB(0x12, 0x34, 0x56), child.Color)
}
