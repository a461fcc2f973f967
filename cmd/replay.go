package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ByLCY/tessera/journal"
)

func newReplayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [session-id]",
		Short: "List journaled sessions or replay one against a fresh engine",
		Long: `Without an argument replay lists the sessions stored in the journal. With a
session id it feeds the recorded orchestrator messages to a new scheduler and
compares every reply byte-for-byte with the recording.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Journal.Path == "" {
				return fmt.Errorf("replay needs a journal: set journal.path or --journal")
			}
			j, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				sessions, err := j.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(out, "%s  v%d  %s  messages=%d\n",
						s.ID, s.Version, s.StartedAt.Local().Format(time.DateTime), s.Messages)
				}
				return nil
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("session id %q: %w", args[0], err)
			}
			p, err := a.pipeline("")
			if err != nil {
				return err
			}
			report, err := journal.Replay(cmd.Context(), j, id, p)
			if err != nil {
				return err
			}
			for _, m := range report.Mismatches {
				fmt.Fprintf(out, "MISMATCH %s\n", m)
			}
			fmt.Fprintf(out, "messages=%d replies=%d mismatches=%d\n", report.Messages, report.Replies, len(report.Mismatches))
			if !report.OK() {
				return fmt.Errorf("replay: %d mismatch(es)", len(report.Mismatches))
			}
			return nil
		},
	}
	return cmd
}
