package auth

import (
	"github.com/spf13/cobra"
)

// Cmd is the auth command group.
var Cmd = NewCmd()

// NewCmd builds the auth command group.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign up, sign in and manage the current session",
		Long: `Manage the account tasks are synced to.

Without an account tasks are kept on this device, up to the anonymous limit.
Signing up moves them to the new account.`,
	}

	cmd.AddCommand(newSignUpCmd())
	cmd.AddCommand(newSignInCmd())
	cmd.AddCommand(newSignOutCmd())
	cmd.AddCommand(newWhoAmICmd())
	cmd.AddCommand(newResetCmd())
	return cmd
}
