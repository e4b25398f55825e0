package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	uniq "github.com/dougcole/resque-uniq"
)

func describeJob(job *uniq.JobDescriptor) string {
	if job == nil {
		return "idle"
	}
	return job.Type + " " + uniq.Canonicalize(job.Args)
}

func newWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List registered workers and what they are running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, configPath(cmd), nil)
			if err != nil {
				return err
			}
			defer e.close()

			infos, err := e.listWorkers(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No workers registered.")
				return nil
			}

			st := newStyler(out)
			now := time.Now()
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.ID,
					info.Host,
					strconv.Itoa(info.PID),
					st.alive(info.Alive),
					now.Sub(info.LastHeartbeat).Truncate(time.Second).String() + " ago",
					describeJob(info.Job),
				})
			}
			fmt.Fprintln(out, st.renderTable([]string{"ID", "HOST", "PID", "STATUS", "HEARTBEAT", "JOB"}, rows))
			return nil
		},
	}
}
