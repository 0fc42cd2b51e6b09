package task

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

func newAddCmd() *cobra.Command {
	var priority, category, notes string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Long: `Add a task to today's list.

Examples:
  daytask add "Buy groceries"
  daytask add "Finish report" -p high -c work
  daytask add "Book flights" --category travel --notes "aisle seat"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			if err := validateEnums(priority, category); err != nil {
				return err
			}

			res, err := app.Store.AddTask(cmd.Context(), domain.Input{
				Text:     strings.Join(args, " "),
				Priority: priority,
				Category: category,
				Notes:    notes,
			})
			if err != nil {
				return fmt.Errorf("failed to add task: %w", err)
			}
			if res.RequiresAuth {
				return cli.ErrSignInRequired
			}
			if !res.Success {
				return app.SaveError()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Task added:")
			printTask(out, res.Task)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (high, medium, low)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (personal, work, shopping, health, education, finance, home, travel)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free-form notes")
	return cmd
}

func validateEnums(priority, category string) error {
	if priority != "" {
		if _, err := domain.ParsePriority(priority); err != nil {
			return fmt.Errorf("%w: %s", err, priority)
		}
	}
	if category != "" {
		if _, err := domain.ParseCategory(category); err != nil {
			return fmt.Errorf("%w: %s", err, category)
		}
	}
	return nil
}
