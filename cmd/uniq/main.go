// Binary uniq inspects and maintains unique-job locks.
//
// Usage:
//
//	uniq <command> [arguments]
//
// Commands:
//
//	init                        Generate a config file (default: uniq.yaml)
//	locks                       List held locks and their state
//	inspect <type> [args-json]  Show the lock of one job
//	release <type> [args-json]  Force-release the lock of one job
//	reap                        Clear stale locks, once or periodically
//	workers                     List registered workers
//	version                     Print the uniq version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultConfigPath = "uniq.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uniq",
		Short:         "Inspect and maintain unique-job locks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to the config file")

	root.AddCommand(
		newInitCmd(),
		newLocksCmd(),
		newInspectCmd(),
		newReleaseCmd(),
		newReapCmd(),
		newWorkersCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the uniq version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "uniq %s\n", version)
			},
		},
	)
	return root
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "uniq: %v\n", err)
		os.Exit(1)
	}
}
