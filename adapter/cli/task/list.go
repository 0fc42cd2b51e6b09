package task

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

func newListCmd() *cobra.Command {
	var (
		status   string
		priority string
		category string
		sorted   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long: `List tasks, newest first.

Examples:
  daytask list
  daytask list --status active --sort-priority
  daytask list -p high -c work
  daytask list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			filter, err := buildFilter(status, priority, category, sorted)
			if err != nil {
				return err
			}

			snap := app.Store.Snapshot()
			tasks := filter.Apply(snap.Tasks)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}

			if msg := snap.SaveError.Message(); msg != "" {
				fmt.Fprintf(out, "! %s\n", msg)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			fmt.Fprintf(out, "Tasks (%d):\n", len(tasks))
			for _, t := range tasks {
				printTask(out, t)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "all", "filter by status (all, active, completed)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "filter by priority (high, medium, low)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "filter by category")
	cmd.Flags().BoolVar(&sorted, "sort-priority", false, "sort by priority, high first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tasks as JSON")
	return cmd
}

func buildFilter(status, priority, category string, sorted bool) (domain.Filter, error) {
	f := domain.Filter{SortByPriority: sorted}

	s, err := domain.ParseStatusFilter(status)
	if err != nil {
		return f, err
	}
	f.Status = s

	if priority != "" {
		p, err := domain.ParsePriority(priority)
		if err != nil {
			return f, fmt.Errorf("%w: %s", err, priority)
		}
		f.Priority = p
	}
	if category != "" {
		c, err := domain.ParseCategory(category)
		if err != nil {
			return f, fmt.Errorf("%w: %s", err, category)
		}
		f.Category = c
	}
	return f, nil
}
