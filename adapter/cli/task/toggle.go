package task

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "toggle <task-id>",
		Aliases: []string{"done"},
		Short:   "Mark a task done, or not done again",
		Long: `Flip a task's completion. The id may be shortened to any unique prefix.

Examples:
  daytask toggle 3f2a9c1b
  daytask done 3f2a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			t, err := app.ResolveTaskID(args[0])
			if err != nil {
				return err
			}

			if err := app.Store.ToggleTask(cmd.Context(), t.ID); err != nil {
				return fmt.Errorf("failed to toggle task: %w", err)
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
}
