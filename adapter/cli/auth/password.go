package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
)

// readPassword returns flagValue when set. Otherwise it prompts on a
// terminal without echo, or reads one line from piped input.
func readPassword(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

// describe maps identity errors to messages for the terminal.
func describe(err error) error {
	switch domain.KindOf(err) {
	case domain.KindCredentials:
		return errors.New("invalid email or password")
	case domain.KindConflict:
		return errors.New("an account with this email already exists, try signing in")
	case domain.KindExpired:
		return fmt.Errorf("%w: sign in again or request a new reset token", err)
	case domain.KindNotConfigured:
		return errors.New("accounts are not configured for this installation (set DAYTASK_AUTH_PROVIDER)")
	case domain.KindUnavailable:
		return errors.New("the account service is unreachable, try again later")
	default:
		return err
	}
}
