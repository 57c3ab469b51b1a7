package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alanmeadows/autodev/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a project configuration",
	Long: `Walk through the core settings and write them to .auto/config.yaml in
the repository root.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := config.RepoRoot()
	if root == "" {
		return fmt.Errorf("not inside a git repository")
	}

	defaults := config.DefaultConfig()
	command := defaults.AI.Command
	mergeMethod := defaults.GitHub.MergeMethod
	maxIterations := strconv.Itoa(defaults.Workflows.MaxReviewIterations)
	testCommand := ""
	requireApproval := defaults.Workflows.RequireHumanApproval

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Code generator command").
				Description("Executable invoked to implement changes").
				Value(&command),
			huh.NewSelect[string]().
				Title("Merge method").
				Options(
					huh.NewOption("squash", "squash"),
					huh.NewOption("merge", "merge"),
					huh.NewOption("rebase", "rebase"),
				).
				Value(&mergeMethod),
			huh.NewInput().
				Title("Max review iterations").
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return fmt.Errorf("must be a number")
					}
					return nil
				}).
				Value(&maxIterations),
			huh.NewInput().
				Title("Test command").
				Description("Inserted into the PR testing checklist (optional)").
				Value(&testCommand),
			huh.NewConfirm().
				Title("Require human approval before merge?").
				Value(&requireApproval),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	iterations, _ := strconv.Atoi(maxIterations)
	project := map[string]any{
		"ai": map[string]any{
			"command": command,
		},
		"github": map[string]any{
			"merge_method": mergeMethod,
		},
		"workflows": map[string]any{
			"max_review_iterations":  iterations,
			"require_human_approval": requireApproval,
		},
	}
	if testCommand != "" {
		project["workflows"].(map[string]any)["test_command"] = testCommand
	}

	path := filepath.Join(root, ".auto", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(project)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
