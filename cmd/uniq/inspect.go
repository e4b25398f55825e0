package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// splitJobArgs returns the type and decoded arguments from "<type> [args-json]".
func splitJobArgs(args []string) (string, []any, error) {
	raw := ""
	if len(args) > 1 {
		raw = args[1]
	}
	parsed, err := parseJobArgs(raw)
	if err != nil {
		return "", nil, err
	}
	return args[0], parsed, nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <type> [args-json]",
		Short:   "Show the lock of one job",
		Example: `  uniq inspect SendEmail '[{"user_id": 5}]'`,
		Args:    cobra.RangeArgs(1, 2),
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
			st := newStyler(out)
			fmt.Fprintf(out, "Lock:     %s\n", info.Key)
			fmt.Fprintf(out, "Run key:  %s\n", info.RunKey)
			fmt.Fprintf(out, "State:    %s\n", st.state(info.State))
			fmt.Fprintf(out, "Locked:   %s\n", formatTime(info.LockedAt))
			fmt.Fprintf(out, "Running:  %s\n", formatTime(info.RunningAt))
			return nil
		},
	}
}
