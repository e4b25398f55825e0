package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	uniq "github.com/dougcole/resque-uniq"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func jobTypeOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newLocksCmd() *cobra.Command {
	var staleOnly bool
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "List held locks and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, configPath(cmd), nil)
			if err != nil {
				return err
			}
			defer e.close()

			infos, err := e.locker.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := newStyler(out)
			var rows [][]string
			for _, info := range infos {
				if staleOnly && info.State != uniq.StateStale {
					continue
				}
				rows = append(rows, []string{
					info.Key,
					jobTypeOrDash(info.JobType),
					st.state(info.State),
					formatTime(info.LockedAt),
					formatTime(info.RunningAt),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No locks held.")
				return nil
			}
			fmt.Fprintln(out, st.renderTable([]string{"LOCK", "TYPE", "STATE", "LOCKED", "RUNNING"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&staleOnly, "stale", false, "Only list stale locks")
	return cmd
}
