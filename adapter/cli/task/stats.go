package task

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}

			stats := domain.ComputeStats(app.Store.Snapshot().Tasks)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Task Stats")
			fmt.Fprintln(out, strings.Repeat("=", 30))
			fmt.Fprintf(out, "  Total:      %d\n", stats.Total)
			fmt.Fprintf(out, "  Completed:  %d (%d%%)\n", stats.Completed, stats.CompletionRate)
			fmt.Fprintf(out, "  Pending:    %d\n", stats.Pending)

			fmt.Fprintln(out, "\nBy priority")
			for _, p := range domain.Priorities() {
				fmt.Fprintf(out, "  %-10s %d\n", p, stats.ByPriority[p])
			}

			if len(stats.ByCategory) > 0 {
				fmt.Fprintln(out, "\nBy category")
				for _, c := range domain.Categories() {
					if n := stats.ByCategory[c]; n > 0 {
						fmt.Fprintf(out, "  %-10s %d\n", c.Label(), n)
					}
				}
			}
			return nil
		},
	}
}
