package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/autodev/internal/provider"
)

var (
	issuesAssignee string
	issuesLabels   []string
	issuesState    string

	issuesCmd = &cobra.Command{
		Use:     "issues",
		Aliases: []string{"ls"},
		Short:   "List issues from the tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return failure(err)
			}

			issues, err := app.Runner.Provider.ListIssues(cmd.Context(), provider.IssueFilter{
				Assignee: issuesAssignee,
				Labels:   issuesLabels,
				State:    issuesState,
			})
			if err != nil {
				return failure(err)
			}
			if len(issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no issues found")
				return nil
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("ID", "TYPE", "TITLE", "ASSIGNEE", "LABELS")
			for _, is := range issues {
				t.Row(is.ID, string(is.Type), truncate(is.Title, 50), is.Assignee, strings.Join(is.Labels, ","))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
)

func init() {
	issuesCmd.Flags().StringVar(&issuesAssignee, "assignee", "", "Filter by assignee")
	issuesCmd.Flags().StringSliceVar(&issuesLabels, "label", nil, "Filter by label (repeatable)")
	issuesCmd.Flags().StringVar(&issuesState, "state", "open", "Issue state: open, closed, all")
	rootCmd.AddCommand(issuesCmd)
}
