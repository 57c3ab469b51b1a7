// Package cli wires the command-line surface: thin cobra commands over
// the workflow controller, stage runners, and review engine.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/autodev/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "autodev",
		Short: "Issue-to-merged-PR workflow automation",
		Long: `Autodev turns a tracked issue into a merged pull request: it fetches the
issue, implements the change with an external code generator in an isolated
worktree, opens a PR, and drives the review cycle until approval and merge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose)
	}
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
