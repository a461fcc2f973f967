package headless

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/fault"
)

func writeFixture(t *testing.T, dir, name, html string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "hi.html", `<div style="background: red; height: 10px">Hi</div>`)

	res, err := Export(context.Background(), ExportRequest{Path: path, Width: 32, Height: 24})
	require.NoError(t, err)
	assert.Equal(t, Metadata{Format: FormatRGBA8, Width: 32, Height: 24, StrideBytes: 128, Frame: 0}, res.Metadata)
	assert.Len(t, res.Pixels, 32*24*4)

	// 左上角是红色块，右下角仍是背景
	assert.Equal(t, []byte{255, 0, 0, 255}, res.Pixels[:4])
	bg := display.Background
	last := len(res.Pixels) - 4
	assert.Equal(t, []byte{bg.R, bg.G, bg.B, bg.A}, res.Pixels[last:])

	out := filepath.Join(dir, "out", "hi.rgba")
	require.NoError(t, WriteExport(out, res))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.Pixels, raw)

	var meta Metadata
	b, err := os.ReadFile(out + ".json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &meta))
	assert.Equal(t, res.Metadata, meta)
	assert.Contains(t, string(b), `"stride_bytes": 128`)
}

func TestExportDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "p.html", "<h1>Title</h1><p>Some text that wraps across lines</p>")
	req := ExportRequest{Path: path, Width: 64, Height: 64, Frame: 3}

	a, err := Export(context.Background(), req)
	require.NoError(t, err)
	b, err := Export(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Pixels, b.Pixels)
	assert.Equal(t, uint64(3), a.Metadata.Frame)
}

func TestExportErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFixture(t, dir, "empty.html", "")

	_, err := Export(context.Background(), ExportRequest{Path: empty, Width: 0, Height: 10})
	require.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = Export(context.Background(), ExportRequest{Path: empty, Width: 10, Height: 10})
	require.ErrorIs(t, err, fault.ErrInvalidInput)

	_, err = Export(context.Background(), ExportRequest{Path: filepath.Join(dir, "missing.html"), Width: 10, Height: 10})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestGoldenLifecycle(t *testing.T) {
	ctx := context.Background()
	fixtures := t.TempDir()
	goldens := t.TempDir()
	writeFixture(t, fixtures, "a.html", "<p>alpha</p>")
	writeFixture(t, fixtures, "b.html", "<p>beta</p>")
	writeFixture(t, fixtures, "notes.txt", "ignored")

	g := Golden{FixtureDir: fixtures, GoldenDir: goldens, Width: 48, Height: 32}

	// 没有基线时全部失败
	var out bytes.Buffer
	sum, err := g.Run(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Fail: 2}, sum)
	assert.Contains(t, out.String(), "FAIL a diff=")
	assert.True(t, strings.HasSuffix(out.String(), "pass=0 fail=2\n"))
	diff, err := os.ReadFile(filepath.Join(goldens, "a.diff"))
	require.NoError(t, err)
	assert.Contains(t, string(diff), "expected: <missing>")

	out.Reset()
	g.Update = true
	sum, err = g.Run(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Updated: 2}, sum)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^UPDATED a \([0-9a-f]{12}\)$`, lines[0])
	assert.Regexp(t, `^UPDATED b \([0-9a-f]{12}\)$`, lines[1])
	assert.FileExists(t, filepath.Join(goldens, "a.sha256"))
	assert.FileExists(t, filepath.Join(goldens, "a.dl.txt"))
	assert.NoFileExists(t, filepath.Join(goldens, "a.diff"))

	out.Reset()
	g.Update = false
	sum, err = g.Run(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Pass: 2}, sum)
	assert.Equal(t, "PASS a\nPASS b\npass=2 fail=0\n", out.String())

	writeFixture(t, fixtures, "b.html", "<p>beta</p><p>gamma</p>")
	out.Reset()
	sum, err = g.Run(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Pass: 1, Fail: 1}, sum)
	assert.Contains(t, out.String(), "FAIL b diff="+filepath.Join(goldens, "b.diff"))

	diff, err = os.ReadFile(filepath.Join(goldens, "b.diff"))
	require.NoError(t, err)
	assert.Contains(t, string(diff), "expected: ")
	assert.Contains(t, string(diff), "actual:   ")
	assert.Contains(t, string(diff), "+")
	assert.Contains(t, string(diff), "gamma")
}

func TestGoldenRenderFailure(t *testing.T) {
	fixtures := t.TempDir()
	goldens := t.TempDir()
	writeFixture(t, fixtures, "empty.html", "")

	var out bytes.Buffer
	sum, err := Golden{FixtureDir: fixtures, GoldenDir: goldens, Width: 8, Height: 8}.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Fail)
	diff, err := os.ReadFile(filepath.Join(goldens, "empty.diff"))
	require.NoError(t, err)
	assert.Contains(t, string(diff), "error: ")
}

// 仓库内提交的基线必须与当前渲染结果一致。
func TestCommittedGoldens(t *testing.T) {
	goldens := t.TempDir()
	require.NoError(t, os.CopyFS(goldens, os.DirFS(filepath.Join("..", "testdata", "golden"))))

	g := Golden{
		FixtureDir: filepath.Join("..", "testdata", "fixtures"),
		GoldenDir:  goldens,
		Width:      960,
		Height:     540,
	}
	var out bytes.Buffer
	sum, err := g.Run(context.Background(), &out)
	require.NoError(t, err)
	if sum.Fail > 0 {
		diffs, _ := filepath.Glob(filepath.Join(goldens, "*.diff"))
		for _, d := range diffs {
			raw, _ := os.ReadFile(d)
			t.Logf("%s:\n%s", filepath.Base(d), raw)
		}
	}
	assert.Zero(t, sum.Fail, out.String())
	assert.Equal(t, 4, sum.Pass)
}

// 半透明背景按直通 alpha 的 source-over 叠加到预乘缓冲上。
func TestAlphaFixtureCompositing(t *testing.T) {
	res, err := Export(context.Background(), ExportRequest{
		Path:   filepath.Join("..", "testdata", "fixtures", "alpha.html"),
		Width:  960,
		Height: 540,
	})
	require.NoError(t, err)

	pixel := func(x, y int) []byte {
		i := (y*960 + x) * 4
		return res.Pixels[i : i+4]
	}
	assert.Equal(t, []byte{250, 122, 123, 255}, pixel(0, 0), "rgba(255, 0, 0, 0.5) over the page")
	assert.Equal(t, []byte{122, 122, 252, 255}, pixel(959, 52), "#0000ff80 over the page")
	assert.Equal(t, []byte{245, 245, 248, 255}, pixel(0, 30), "gap between the blocks")

	want, err := os.ReadFile(filepath.Join("..", "testdata", "golden", "alpha.dl.txt"))
	require.NoError(t, err)
	assert.Equal(t, string(want), display.Dump(res.List))
}

func TestLineDiff(t *testing.T) {
	got := lineDiff("a\nb\nc\n", "a\nx\nc\n")
	assert.Equal(t, " a\n-b\n+x\n c\n", got)
}
