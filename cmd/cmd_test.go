package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/tessera/config"
)

// execute runs the command tree with an isolated default config file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefault(cfgPath))

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeDoc(t *testing.T, dir, name, html string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ipc schema 1-2")
}

func TestHeadlessCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "page.html", "<h1>Hello</h1>")
	out := filepath.Join(dir, "page.rgba")

	stdout, err := execute(t, "headless", doc, "--width", "40", "--height", "30", "--frame", "2", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "40x30 frame=2")

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, raw, 40*30*4)
	assert.FileExists(t, out+".json")
}

func TestHeadlessCommandWithData(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "page.html", "<p>${user.name}</p>")
	data := writeDoc(t, dir, "data.json", `{"user":{"name":"Ada"}}`)

	_, err := execute(t, "headless", doc, "--width", "40", "--height", "30", "--data", data, "-o", filepath.Join(dir, "a.rgba"))
	require.NoError(t, err)

	_, err = execute(t, "headless", doc, "--width", "40", "--height", "30", "--data", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "page.html", "<p>vector text</p>")

	for _, format := range []string{"pdf", "svg", "rgba"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(dir, "out", "page."+format)
			debug := filepath.Join(dir, "debug", format+".json")
			_, err := execute(t, "export", doc, "-f", format, "-o", out, "--debug", debug, "--width", "120", "--height", "80")
			require.NoError(t, err)
			raw, err := os.ReadFile(out)
			require.NoError(t, err)
			switch format {
			case "pdf":
				assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
			case "svg":
				assert.Contains(t, string(raw), "<svg")
			case "rgba":
				assert.Len(t, raw, 120*80*4)
			}
			assert.FileExists(t, debug)
		})
	}

	_, err := execute(t, "export", doc, "-f", "png")
	require.Error(t, err)
}

func TestGoldenCommand(t *testing.T) {
	fixtures := t.TempDir()
	goldens := t.TempDir()
	writeDoc(t, fixtures, "one.html", "<p>one</p>")
	t.Setenv("TESSERA_GOLDEN_FIXTURE_DIR", fixtures)
	t.Setenv("TESSERA_GOLDEN_GOLDEN_DIR", goldens)

	out, err := execute(t, "golden", "--width", "32", "--height", "32")
	require.Error(t, err, "missing baseline fails")
	assert.Contains(t, out, "pass=0 fail=1")

	out, err = execute(t, "golden", "--width", "32", "--height", "32", "--update")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`UPDATED one \([0-9a-f]{12}\)`), out)

	out, err = execute(t, "golden", "--width", "32", "--height", "32")
	require.NoError(t, err)
	assert.Equal(t, "PASS one\npass=1 fail=0\n", out)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "page.html", "<p>frames</p>")

	out, err := execute(t, "run", doc, "--frames", "3", "--width", "64", "--height", "48")
	require.NoError(t, err)
	assert.Contains(t, out, "frames=3 ")
	assert.Contains(t, out, "last_hash=")
}

func TestJournalAndReplay(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "page.html", "<title>T</title><p>journal</p>")
	db := filepath.Join(dir, "journal.db")

	_, err := execute(t, "headless", doc, "--width", "32", "--height", "32", "--journal", db, "-o", filepath.Join(dir, "x.rgba"))
	require.NoError(t, err)

	out, err := execute(t, "replay", "--journal", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	id := strings.Fields(lines[0])[0]
	assert.Contains(t, lines[0], "messages=6")

	out, err = execute(t, "replay", id, "--journal", db)
	require.NoError(t, err)
	assert.Contains(t, out, "messages=3 replies=3 mismatches=0")

	_, err = execute(t, "replay")
	require.Error(t, err, "no journal configured")
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)

	out, err = execute(t, "config", "show", "--width", "123")
	require.NoError(t, err)
	assert.Contains(t, out, "width: 123")
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "version", "--ipc-mode", "carrier-pigeon")
	require.Error(t, err)
}
