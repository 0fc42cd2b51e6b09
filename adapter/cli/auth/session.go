package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

func newSignUpCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd, password, "Password: ")
			if err != nil {
				return err
			}

			res, err := app.Auth.SignUp(cmd.Context(), args[0], pw)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newSignInCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:     "signin <email>",
		Aliases: []string{"login"},
		Short:   "Sign in to an existing account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd, password, "Password: ")
			if err != nil {
				return err
			}

			res, err := app.Auth.SignIn(cmd.Context(), args[0], pw)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		Aliases: []string{"logout"},
		Short:   "Sign out of the current account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			if !app.Auth.IsAuthenticated(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := app.Auth.SignOut(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.RequireApp()
			if err != nil {
				return err
			}
			user, err := app.Auth.CurrentUser(cmd.Context())
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			if user == nil {
				fmt.Fprintf(out, "Not signed in (%d anonymous tasks)\n", app.Store.AnonymousTaskCount())
				if !app.Store.CanAddTask() {
					fmt.Fprintln(out, "Anonymous limit reached. Sign up to add more tasks.")
				}
				return nil
			}
			fmt.Fprintf(out, "%s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
}
