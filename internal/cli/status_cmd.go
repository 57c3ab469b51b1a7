package cli

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusCmd = &cobra.Command{
	Use:   "status [issue]",
	Short: "Show tracked workflows, or one workflow in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return failure(err)
		}
		if len(args) == 1 {
			rec, err := app.loadRecord(args[0])
			if err != nil {
				return failure(err)
			}
			data, err := yaml.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		}

		records, err := app.Store.List()
		if err != nil {
			return failure(err)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no workflows tracked")
			return nil
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].IssueID < records[j].IssueID
		})

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("ISSUE", "TITLE", "STATUS", "AI", "PR", "BRANCH")
		for _, rec := range records {
			title := ""
			if rec.Issue != nil {
				title = truncate(rec.Issue.Title, 40)
			}
			pr := ""
			if rec.PRNumber != 0 {
				pr = fmt.Sprintf("#%d", rec.PRNumber)
			}
			t.Row(rec.IssueID, title, string(rec.Status), string(rec.AIStatus), pr, rec.Branch)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
