package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/ui"
)

var (
	loginEmail    string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the fleet API",
	Long: `Sign in with email and password and store the bearer token in the
session store (session.backend in config).

The password is read from the terminal without echo unless --password is given.`,
	Example: `  # Prompt for email and password
  fleetctl login

  # Against the local simulator
  fleetctl login --api http://localhost:8080 --email operator@fleet.local`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.login(cmd.Context(), loginEmail, loginPassword)
	},
}

func (a *app) login(ctx context.Context, email, password string) error {
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Fprint(a.stdout, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		secret, err := readPassword(reader)
		fmt.Fprintln(a.stdout)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = secret
	}

	result, err := a.client.Login(ctx, email, password)
	if err != nil {
		ui.NewPrinter(a.stdout).PrintFailure("Sign in failed", err, troubleshootingFor(err))
		return err
	}

	ui.NewPrinter(a.stdout).PrintSuccess("Signed in", map[string]string{
		"User":  result.User.Username,
		"Email": result.User.Email,
		"API":   a.client.BaseURL,
	})
	return nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		return string(secret), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.client.Logout(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Fprintln(current.stdout, "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.requireSession(); err != nil {
			return err
		}
		raw, ok := current.session.User()
		if !ok {
			fmt.Fprintln(current.stdout, "Signed in (no profile stored).")
			return nil
		}
		var user fleetapi.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return fmt.Errorf("stored profile is unreadable: %w", err)
		}
		fmt.Fprintf(current.stdout, "%s <%s> uid=%s role=%s\n", user.Username, user.Email, user.UID, user.Role)
		return nil
	},
}

// troubleshootingFor turns a transport error's hint into a tip list.
func troubleshootingFor(err error) []string {
	hint := fleetapi.GetTroubleshootingHint(err)
	if hint == "" {
		return nil
	}
	var tips []string
	for _, line := range strings.Split(hint, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, line)
	}
	return tips
}
