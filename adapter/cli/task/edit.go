package task

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

func newEditCmd() *cobra.Command {
	var text, priority, category, notes string

	cmd := &cobra.Command{
		Use:   "edit <task-id> [new text]",
		Short: "Edit a task",
		Long: `Change a task's text, priority, category or notes. Only the given
values change.

Examples:
  daytask edit 3f2a "Buy groceries and bread"
  daytask edit 3f2a -p low
  daytask edit 3f2a --notes ""`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			t, err := app.ResolveTaskID(args[0])
			if err != nil {
				return err
			}
			if err := validateEnums(priority, category); err != nil {
				return err
			}

			in := domain.EditInput{Text: t.Text}
			switch {
			case len(args) > 1:
				in.Text = strings.Join(args[1:], " ")
			case cmd.Flags().Changed("text"):
				in.Text = text
			}
			if cmd.Flags().Changed("priority") {
				in.Priority = &priority
			}
			if cmd.Flags().Changed("category") {
				in.Category = &category
			}
			if cmd.Flags().Changed("notes") {
				in.Notes = &notes
			}

			if err := app.Store.EditTask(cmd.Context(), t.ID, in); err != nil {
				return fmt.Errorf("failed to edit task: %w", err)
			}
			if err := app.SaveError(); err != nil {
				return err
			}

			updated, err := app.ResolveTaskID(t.ID)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), updated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "new task text")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (high, medium, low)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "notes")
	return cmd
}
