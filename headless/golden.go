package headless

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ByLCY/tessera/browser"
	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/engine"
)

// Golden compares every *.html fixture's exported frame against committed
// hashes. Committed files per fixture f: <GoldenDir>/<f>.sha256 and
// <GoldenDir>/<f>.dl.txt (display list dump used for diffs).
type Golden struct {
	FixtureDir string
	GoldenDir  string
	Width      uint32
	Height     uint32
	Frame      uint64
	// Update overwrites the committed baselines instead of comparing.
	Update   bool
	Pipeline *engine.Pipeline
	Session  browser.Options
}

// Summary counts fixture outcomes.
type Summary struct {
	Pass    int
	Fail    int
	Updated int
}

// Run checks fixtures in name order, writing one report line each and a
// final "pass=N fail=M" line to w. Rendering failures count as FAIL with
// the error written to the diff artifact; only I/O on the directories
// themselves aborts the run.
func (g Golden) Run(ctx context.Context, w io.Writer) (Summary, error) {
	var sum Summary
	fixtures, err := filepath.Glob(filepath.Join(g.FixtureDir, "*.html"))
	if err != nil {
		return sum, err
	}
	sort.Strings(fixtures)
	if err := os.MkdirAll(g.GoldenDir, 0o755); err != nil {
		return sum, fmt.Errorf("headless: create golden directory: %w", err)
	}

	for _, path := range fixtures {
		name := strings.TrimSuffix(filepath.Base(path), ".html")
		line, result, err := g.check(ctx, path, name)
		if err != nil {
			return sum, err
		}
		switch result {
		case outcomePass:
			sum.Pass++
		case outcomeUpdated:
			sum.Updated++
		default:
			sum.Fail++
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "pass=%d fail=%d\n", sum.Pass, sum.Fail)
	return sum, nil
}

type outcome int

const (
	outcomePass outcome = iota
	outcomeFail
	outcomeUpdated
)

func (g Golden) check(ctx context.Context, path, name string) (string, outcome, error) {
	base := filepath.Join(g.GoldenDir, name)
	res, renderErr := Export(ctx, ExportRequest{
		Path:     path,
		Width:    g.Width,
		Height:   g.Height,
		Frame:    g.Frame,
		Pipeline: g.Pipeline,
		Session:  g.Session,
	})
	if renderErr != nil {
		diffPath := base + ".diff"
		if err := os.WriteFile(diffPath, []byte("error: "+renderErr.Error()+"\n"), 0o644); err != nil {
			return "", outcomeFail, err
		}
		return fmt.Sprintf("FAIL %s diff=%s", name, diffPath), outcomeFail, nil
	}

	sum := sha256.Sum256(res.Pixels)
	actual := hex.EncodeToString(sum[:])
	dump := display.Dump(res.List)

	if g.Update {
		if err := os.WriteFile(base+".sha256", []byte(actual+"\n"), 0o644); err != nil {
			return "", outcomeFail, err
		}
		if err := os.WriteFile(base+".dl.txt", []byte(dump), 0o644); err != nil {
			return "", outcomeFail, err
		}
		_ = os.Remove(base + ".diff")
		return fmt.Sprintf("UPDATED %s (%s)", name, actual[:12]), outcomeUpdated, nil
	}

	expected, err := readBaseline(base + ".sha256")
	if err != nil {
		return "", outcomeFail, err
	}
	if expected == actual {
		_ = os.Remove(base + ".diff")
		return "PASS " + name, outcomePass, nil
	}

	expectedDump, err := readBaseline(base + ".dl.txt")
	if err != nil {
		return "", outcomeFail, err
	}
	diffPath := base + ".diff"
	if err := os.WriteFile(diffPath, []byte(diffReport(expected, actual, expectedDump, dump)), 0o644); err != nil {
		return "", outcomeFail, err
	}
	return fmt.Sprintf("FAIL %s diff=%s", name, diffPath), outcomeFail, nil
}

// readBaseline returns "" for a missing file.
func readBaseline(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func diffReport(expectedHash, actualHash, expectedDump, actualDump string) string {
	var b strings.Builder
	if expectedHash == "" {
		expectedHash = "<missing>"
	}
	fmt.Fprintf(&b, "expected: %s\n", expectedHash)
	fmt.Fprintf(&b, "actual:   %s\n", actualHash)
	b.WriteString("--- expected display list\n+++ actual display list\n")
	b.WriteString(lineDiff(expectedDump, actualDump))
	return b.String()
}

// lineDiff renders a line-mode diff with " ", "-" and "+" prefixes.
func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}
