package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runsLimit  int
	runsStatus string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent nightly benchmark runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := newFetcher().ListRuns(cmd.Context(), runsLimit, runsStatus)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No workflow runs found.")
			return nil
		}

		fmt.Printf("%-12s %-12s %-12s %s\n", "RUN ID", "DATE", "STATUS", "TITLE")
		for _, run := range runs {
			status := run.Status
			if run.Completed() {
				if run.Conclusion == "success" {
					status = "✓ success"
				} else {
					status = "✗ " + run.Conclusion
				}
			}
			fmt.Printf("%-12d %-12s %-12s %s\n", run.ID, run.Date(), status, run.DisplayTitle)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to list")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (e.g. success, failure)")
}
