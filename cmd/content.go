package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/ipc"
)

func newContentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    "content",
		Short:  "Run the content engine over stdin/stdout (spawned by ipc.mode=process)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p, err := a.pipeline("")
			if err != nil {
				return err
			}
			ep := ipc.NewStream(ipc.JoinIO(os.Stdin, os.Stdout), ipc.ToEngine)
			defer ep.Close()
			a.log.Debug("content engine started", "pid", os.Getpid())
			return engine.Serve(ctx, ep, engine.NewScheduler(p))
		},
	}
}
