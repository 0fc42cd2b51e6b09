// Package task implements the task commands: add, list, stats, toggle,
// edit, delete and watch.
package task

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// Commands returns the task commands. They are registered on the root
// command so `daytask add` works without a group prefix.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		newAddCmd(),
		newListCmd(),
		newStatsCmd(),
		newToggleCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newWatchCmd(),
	}
}

func printTask(w io.Writer, t domain.Task) {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	fmt.Fprintf(w, "%s %s  %s %s\n", check, cli.ShortID(t.ID), t.Text, badge(t))
	if t.Notes != "" {
		fmt.Fprintf(w, "             %s\n", t.Notes)
	}
}

func badge(t domain.Task) string {
	p := t.Priority
	if p == "" {
		p = domain.DefaultPriority
	}
	c := t.Category
	if c == "" {
		c = domain.DefaultCategory
	}
	marker := ""
	switch p {
	case domain.PriorityHigh:
		marker = "(!)"
	case domain.PriorityMedium:
		marker = "(~)"
	case domain.PriorityLow:
		marker = "(.)"
	}
	return fmt.Sprintf("%s #%s", marker, c)
}
