package task

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the task list whenever it changes",
		Long: `Follow the task list. Changes made by other daytask processes appear
as they happen. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			// coalesce bursts; only the latest snapshot matters
			updates := make(chan tasksync.Snapshot, 1)
			cancel := app.Store.OnChange(func(s tasksync.Snapshot) {
				select {
				case <-updates:
				default:
				}
				updates <- s
			})
			defer cancel()

			render(out, app.Store.Snapshot())
			ctx := cmd.Context()
			for {
				select {
				case <-ctx.Done():
					return nil
				case s := <-updates:
					if s.IsLoading {
						continue
					}
					render(out, s)
				}
			}
		},
	}
}

func render(out io.Writer, s tasksync.Snapshot) {
	fmt.Fprintf(out, "-- %s --\n", time.Now().Format("15:04:05"))
	if msg := s.SaveError.Message(); msg != "" {
		fmt.Fprintf(out, "! %s\n", msg)
	}
	if len(s.Tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	for _, t := range s.Tasks {
		printTask(out, t)
	}
}
