package task

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <task-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			t, err := app.ResolveTaskID(args[0])
			if err != nil {
				return err
			}

			if err := app.Store.DeleteTask(cmd.Context(), t.ID); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			if err := app.SaveError(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %s\n", cli.ShortID(t.ID))
			return nil
		},
	}
}
