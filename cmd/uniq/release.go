package main

import (
	"fmt"

	"github.com/spf13/cobra"

	uniq "github.com/dougcole/resque-uniq"
)

func newReleaseCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "release <type> [args-json]",
		Short: "Release the lock of one job",
		Long:  `Release deletes the lock and execution marker of one job, as if it had
been dequeued. Without --force only stale locks are released.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, jobArgs, err := splitJobArgs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, configPath(cmd), nil)
			if err != nil {
				return err
			}
			defer e.close()

			key, err := e.locker.LockKey(jobType, jobArgs)
			if err != nil {
				return err
			}
			info, err := e.locker.Inspect(ctx, key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case info.State == uniq.StateFree:
				fmt.Fprintf(out, "%s is not held\n", key)
				return nil
			case info.State != uniq.StateStale && !force:
				return fmt.Errorf("%s is %s; use --force to release it anyway", key, info.State)
			}

			if err := e.locker.AfterDequeue(ctx, jobType, jobArgs); err != nil {
				return err
			}
			e.logger.Info("lock released from cli", "lock", key, "state", string(info.State))
			fmt.Fprintf(out, "Released %s (was %s)\n", key, info.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Release even if the job is queued or running")
	return cmd
}
