package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/autodev/internal/workflow"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <issue>",
	Short: "Fetch an issue and start tracking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return failure(err)
		}
		rec, err := app.loadRecord(args[0])
		if errors.Is(err, workflow.ErrNotFound) {
			rec = workflow.NewRecord(normalizeID(args[0]))
		} else if err != nil {
			return failure(err)
		}
		if err := app.Runner.Fetch(cmd.Context(), rec); err != nil {
			return failure(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s: %s\n", rec.IssueID, rec.Issue.Title)
		return nil
	},
}

var (
	implementPrompt     string
	implementPromptFile string
	implementAppend     string
	implementShowPrompt bool

	implementCmd = &cobra.Command{
		Use:   "implement <issue>",
		Short: "Run the code generator against a fetched issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return failure(err)
			}
			rec, err := app.loadRecord(args[0])
			if err != nil {
				return failure(err)
			}
			opts := workflow.ImplementOptions{
				PromptOverride: implementPrompt,
				PromptFile:     implementPromptFile,
				Append:         implementAppend,
			}
			if implementShowPrompt {
				prompt, err := app.Runner.ResolveImplementPrompt(rec, opts)
				if err != nil {
					return failure(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), prompt)
				return nil
			}
			if err := app.Runner.Implement(cmd.Context(), rec, opts); err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Implemented %s on branch %s\n", rec.IssueID, rec.Branch)
			return nil
		},
	}
)

var openPRCmd = &cobra.Command{
	Use:   "open-pr <issue>",
	Short: "Commit the implementation and open a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return failure(err)
		}
		rec, err := app.loadRecord(args[0])
		if err != nil {
			return failure(err)
		}
		if err := app.Runner.OpenPR(cmd.Context(), rec); err != nil {
			return failure(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Opened PR #%d: %s\n", rec.PRNumber, rec.PRURL)
		return nil
	},
}

var (
	processSkipImplement bool
	processSkipPR        bool
	processSkipReview    bool
	processResume        bool
	processAutoMerge     bool

	processCmd = &cobra.Command{
		Use:   "process <issue>",
		Short: "Run the full issue-to-PR pipeline",
		Long: `Process drives an issue through every stage: fetch, implement, open a
pull request, and run the review cycle. With --auto-merge an approved PR
is merged and cleaned up as well. Re-running with --resume picks up an
interrupted workflow where it stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return failure(err)
			}
			rec, err := app.Controller.Process(cmd.Context(), args[0], workflow.ProcessOptions{
				SkipImplement: processSkipImplement,
				SkipPR:        processSkipPR,
				SkipReview:    processSkipReview,
				Resume:        processResume,
				AutoMerge:     processAutoMerge,
				Implement: workflow.ImplementOptions{
					PromptOverride: implementPrompt,
					PromptFile:     implementPromptFile,
					Append:         implementAppend,
				},
			})
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s finished with status %s\n", rec.IssueID, rec.Status)
			return nil
		},
	}
)

var reviewCmd = &cobra.Command{
	Use:   "review <pr>",
	Short: "Run the review cycle on a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := parsePRNumber(args[0])
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context())
		if err != nil {
			return failure(err)
		}
		rec, err := app.Controller.Review(cmd.Context(), pr)
		if err != nil {
			return failure(err)
		}
		status := "unknown"
		if rec.ReviewCycle != nil {
			status = string(rec.ReviewCycle.Status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Review cycle for PR #%d: %s\n", pr, status)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <pr>",
	Short: "Apply one round of review-feedback updates to a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := parsePRNumber(args[0])
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context())
		if err != nil {
			return failure(err)
		}
		if _, err := app.Controller.RunUpdate(cmd.Context(), pr); err != nil {
			return failure(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated PR #%d\n", pr)
		return nil
	},
}

var (
	mergeForce bool

	mergeCmd = &cobra.Command{
		Use:   "merge <issue>",
		Short: "Merge an approved pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return failure(err)
			}
			rec, err := app.loadRecord(args[0])
			if err != nil {
				return failure(err)
			}
			if err := app.Runner.Merge(cmd.Context(), rec, mergeForce); err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged PR #%d for %s\n", rec.PRNumber, rec.IssueID)
			return nil
		},
	}
)

var (
	cleanupAll          bool
	cleanupKeepWorktree bool
	cleanupDeleteBranch bool
	cleanupForce        bool

	cleanupCmd = &cobra.Command{
		Use:   "cleanup [issue]",
		Short: "Remove worktrees and purge finished workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return failure(err)
			}
			opts := workflow.CleanupOptions{
				KeepWorktree: cleanupKeepWorktree,
				DeleteBranch: cleanupDeleteBranch,
				Force:        cleanupForce,
			}

			if len(args) == 1 {
				rec, err := app.loadRecord(args[0])
				if err != nil {
					return failure(err)
				}
				if err := app.Runner.Cleanup(cmd.Context(), rec, opts); err != nil {
					return failure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %s\n", rec.IssueID)
				return nil
			}
			if !cleanupAll {
				return fmt.Errorf("an issue identifier or --all is required")
			}

			records, err := app.Store.List()
			if err != nil {
				return failure(err)
			}
			cleaned := 0
			for _, rec := range records {
				if !rec.Status.Terminal() {
					continue
				}
				if err := app.Runner.Cleanup(cmd.Context(), rec, opts); err != nil {
					return failure(err)
				}
				cleaned++
			}
			purged, err := app.Store.PurgeTerminal()
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d worktrees, purged %d records\n", cleaned, purged)
			return nil
		},
	}
)

func parsePRNumber(raw string) (int, error) {
	if len(raw) > 0 && raw[0] == '#' {
		raw = raw[1:]
	}
	pr, err := strconv.Atoi(raw)
	if err != nil || pr <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", raw)
	}
	return pr, nil
}

func init() {
	implementCmd.Flags().StringVar(&implementPrompt, "prompt", "", "Replace the generated prompt entirely")
	implementCmd.Flags().StringVar(&implementPromptFile, "prompt-file", "", "Read the prompt from a file")
	implementCmd.Flags().StringVar(&implementAppend, "append", "", "Append extra instructions to the prompt")
	implementCmd.Flags().BoolVar(&implementShowPrompt, "show-prompt", false, "Print the resolved prompt without running the generator")

	processCmd.Flags().BoolVar(&processSkipImplement, "skip-implement", false, "Skip the implementation stage")
	processCmd.Flags().BoolVar(&processSkipPR, "skip-pr", false, "Stop before opening a pull request")
	processCmd.Flags().BoolVar(&processSkipReview, "skip-review", false, "Skip the review cycle")
	processCmd.Flags().BoolVar(&processResume, "resume", false, "Resume a previously interrupted workflow")
	processCmd.Flags().BoolVar(&processAutoMerge, "auto-merge", false, "Merge and clean up once the PR is approved")
	processCmd.Flags().StringVar(&implementPrompt, "prompt", "", "Replace the generated implementation prompt")
	processCmd.Flags().StringVar(&implementPromptFile, "prompt-file", "", "Read the implementation prompt from a file")
	processCmd.Flags().StringVar(&implementAppend, "append", "", "Append extra instructions to the implementation prompt")

	mergeCmd.Flags().BoolVar(&mergeForce, "force", false, "Merge even without approval or passing checks")

	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Clean every terminal workflow and purge its record")
	cleanupCmd.Flags().BoolVar(&cleanupKeepWorktree, "keep-worktree", false, "Leave the worktree in place")
	cleanupCmd.Flags().BoolVar(&cleanupDeleteBranch, "delete-branch", false, "Delete the remote branch as well")
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "Remove the worktree even with uncommitted changes")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(implementCmd)
	rootCmd.AddCommand(openPRCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(cleanupCmd)
}
