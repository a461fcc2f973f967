// Package cmd is the tessera command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ByLCY/tessera/config"
	"github.com/ByLCY/tessera/ipc"
	"github.com/ByLCY/tessera/tracing"
)

var version = "dev"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *slog.Logger
	tracing *tracing.Provider
	// stderr receives logs; stdout may be the IPC channel (content).
	stderr io.Writer
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "tessera",
		Short:         "A minimal, deterministic browser engine",
		Long:          `tessera turns HTML into pixels: tokenizer, DOM, layout, display list and a software rasterizer, driven by a frame scheduler over a versioned IPC protocol.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.tracing == nil {
				return nil
			}
			return a.tracing.Shutdown(context.Background())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./.tessera/config.yaml, then ~/.config/tessera/config.yaml)")
	pf.Uint32("width", 0, "viewport width in pixels")
	pf.Uint32("height", 0, "viewport height in pixels")
	pf.Bool("overlay", false, "paint the frame overlay")
	pf.Uint32("ipc-version", 0, "schema version spoken by the orchestrator (1 or 2)")
	pf.String("ipc-mode", "", "where the engine runs: inproc or process")
	pf.String("journal", "", "record IPC messages to this SQLite journal")
	pf.String("log-level", "", "debug, info, warn or error")

	_ = a.v.BindPFlag("viewport.width", pf.Lookup("width"))
	_ = a.v.BindPFlag("viewport.height", pf.Lookup("height"))
	_ = a.v.BindPFlag("render.overlay", pf.Lookup("overlay"))
	_ = a.v.BindPFlag("ipc.version", pf.Lookup("ipc-version"))
	_ = a.v.BindPFlag("ipc.mode", pf.Lookup("ipc-mode"))
	_ = a.v.BindPFlag("journal.path", pf.Lookup("journal"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))

	root.AddCommand(
		newRunCommand(a),
		newHeadlessCommand(a),
		newGoldenCommand(a),
		newExportCommand(a),
		newContentCommand(a),
		newReplayCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration and installs the logger and tracer.
func (a *app) setup(cmd *cobra.Command) error {
	config.Setup(a.v, a.cfgFile)
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := config.ParseLevel(cfg.Log.Level)
	if os.Getenv("TESSERA_DEBUG") != "" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(a.stderr, opts)
	}
	a.log = slog.New(handler).With("cmd", cmd.Name())
	slog.SetDefault(a.log)

	tc := cfg.Tracing
	if cmd.Name() == "content" && tc.Exporter == "stdout" {
		// stdout 是 IPC 通道
		a.log.Warn("stdout trace exporter disabled in the content process")
		tc.Exporter = "none"
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.tracing = provider
	a.log.Debug("configuration loaded", "file", a.v.ConfigFileUsed(), "tracing", provider.Enabled())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and supported schema versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tessera %s (ipc schema %d-%d)\n", version, ipc.MinVersion, ipc.CurrentVersion)
		},
	}
}
