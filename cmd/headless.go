package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/tessera/headless"
	"github.com/ByLCY/tessera/ipc"
)

func newHeadlessCommand(a *app) *cobra.Command {
	var (
		out      string
		frame    uint64
		dataPath string
	)
	cmd := &cobra.Command{
		Use:   "headless <document.html>",
		Short: "Render one frame to raw RGBA8 bytes plus a JSON sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(dataPath)
			if err != nil {
				return err
			}
			opts, closeJournal, err := a.sessionOptions()
			if err != nil {
				return err
			}
			defer func() { _ = closeJournal() }()

			res, err := headless.Export(cmd.Context(), headless.ExportRequest{
				Path:     args[0],
				Width:    a.cfg.Viewport.Width,
				Height:   a.cfg.Viewport.Height,
				Frame:    frame,
				Pipeline: p,
				Session:  opts,
			})
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".rgba"
			}
			if err := headless.WriteExport(out, res); err != nil {
				return err
			}
			a.log.Info("frame exported", "path", out, "frame", res.Metadata.Frame, "commands", res.List.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d frame=%d\n", out, res.Metadata.Width, res.Metadata.Height, res.Metadata.Frame)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: <document>.rgba)")
	cmd.Flags().Uint64Var(&frame, "frame", 0, "frame index to capture")
	cmd.Flags().StringVar(&dataPath, "data", "", "JSON/YAML data bound into ${path} placeholders")
	return cmd
}

func newGoldenCommand(a *app) *cobra.Command {
	var update bool
	cmd := &cobra.Command{
		Use:   "golden",
		Short: "Compare fixture renderings against committed hashes",
		Long: `golden renders every *.html file in golden.fixture_dir and compares the SHA-256 of
its pixels with <golden_dir>/<name>.sha256. Failures write <golden_dir>/<name>.diff with
both hashes and a diff of the display lists. --update rewrites the baselines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline("")
			if err != nil {
				return err
			}
			// 基线总是按当前协议版本生成
			opts := a.baseOptions()
			opts.Version = ipc.CurrentVersion
			g := headless.Golden{
				FixtureDir: a.cfg.Golden.FixtureDir,
				GoldenDir:  a.cfg.Golden.GoldenDir,
				Width:      a.cfg.Viewport.Width,
				Height:     a.cfg.Viewport.Height,
				Frame:      a.cfg.Golden.Frame,
				Update:     update,
				Pipeline:   p,
				Session:    opts,
			}
			sum, err := g.Run(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if sum.Fail > 0 {
				return fmt.Errorf("golden: %d fixture(s) failed", sum.Fail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "overwrite the committed baselines")
	return cmd
}
