package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ByLCY/tessera/browser"
	"github.com/ByLCY/tessera/platform"
	"github.com/ByLCY/tessera/watch"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		watchFile bool
		frames    int
		dataPath  string
	)
	cmd := &cobra.Command{
		Use:   "run <document.html>",
		Short: "Drive a document through the windowed frame loop",
		Long: `run loads a document into an engine session and drives the frame loop against the
built-in null platform, which presents frames in memory and records their hashes.
With --watch the document is reloaded whenever it changes on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.run(ctx, cmd, args[0], watchFile, frames, dataPath)
		},
	}
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "reload the document when it changes")
	cmd.Flags().IntVar(&frames, "frames", 120, "stop after presenting this many frames (0 runs until interrupted)")
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON/YAML data bound into ${path} placeholders")
	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command, path string, watchFile bool, frames int, dataPath string) error {
	p, err := a.pipeline(dataPath)
	if err != nil {
		return err
	}
	// 窗口循环自己绘制叠加层，按任意键切换
	p.Overlay = false
	s, closeJournal, err := a.startSession(ctx, p)
	if err != nil {
		return err
	}
	defer func() { _ = closeJournal() }()

	opts := browser.WindowOptions{
		URL:        "file://" + path,
		Title:      "tessera - " + filepath.Base(path),
		Width:      a.cfg.Viewport.Width,
		Height:     a.cfg.Viewport.Height,
		Source:     func() ([]byte, error) { return os.ReadFile(path) },
		TickHz:     a.cfg.Frame.TickHz,
		MaxUpdates: a.cfg.Frame.MaxUpdates,
		Overlay:    a.cfg.Render.Overlay,
	}
	if watchFile {
		w, err := watch.New(watch.Config{Path: path, Debounce: a.cfg.Watch.Debounce, Logger: a.log})
		if err != nil {
			return errors.Join(err, s.Close())
		}
		reload, err := w.Start()
		if err != nil {
			return errors.Join(err, s.Close())
		}
		defer func() { _ = w.Stop() }()
		opts.Reload = reload
		a.log.Info("watching document", "path", path)
	}

	plat := platform.NewNull(frames)
	stats, err := browser.RunWindow(ctx, plat, s, opts)
	if err != nil {
		return errors.Join(err, s.Close())
	}
	if err := s.Shutdown(context.Background()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "frames=%d reloads=%d failed_ticks=%d last_frame=%d\n",
		stats.Frames, stats.Reloads, stats.FailedTicks, stats.LastFrame)
	if hashes := plat.Presented(); len(hashes) > 0 {
		fmt.Fprintf(out, "last_hash=%s\n", hashes[len(hashes)-1])
	}
	return nil
}
