package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

func newResetCmd() *cobra.Command {
	var token, password string

	cmd := &cobra.Command{
		Use:   "reset <email>",
		Short: "Reset a forgotten password",
		Long: `Request a password reset, or complete one with the issued token.

Examples:
  daytask auth reset ada@example.com
  daytask auth reset --token <token> --password <new password>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if token != "" {
				if app.Resets == nil {
					return errors.New("password reset confirmation is only available for local accounts")
				}
				pw, err := readPassword(cmd, password, "New password: ")
				if err != nil {
					return err
				}
				if err := app.Resets.ConfirmReset(cmd.Context(), token, pw); err != nil {
					return describe(err)
				}
				fmt.Fprintln(out, "Password updated. Sign in with the new password.")
				return nil
			}

			if len(args) == 0 {
				return errors.New("email is required unless --token is given")
			}
			if err := app.Auth.ResetPassword(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintln(out, "If the account exists, a reset token has been issued.")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token to confirm")
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	return cmd
}
