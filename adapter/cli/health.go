package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/pkg/observability"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"health"},
	Short:   "Check the datastore, device store and messaging health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Health == nil {
			return fmt.Errorf("app not initialized")
		}

		health := app.Health.GetOverallHealth(cmd.Context())
		out := cmd.OutOrStdout()
		if healthJSON {
			data, err := health.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		} else {
			fmt.Fprintf(out, "status: %s\n", health.Status)
			names := make([]string, 0, len(health.Checks))
			for name := range health.Checks {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				check := health.Checks[name]
				fmt.Fprintf(out, "  %-14s %-9s %s\n", name, check.Status, check.Message)
			}
			if app.Store != nil {
				snap := app.Store.Snapshot()
				if snap.IsAuthenticated() {
					fmt.Fprintf(out, "  signed in as %s\n", snap.OwnerID)
				} else {
					fmt.Fprintf(out, "  anonymous (%d task(s) created)\n", snap.AnonymousTaskCount)
				}
			}
		}

		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(healthCmd)
}
