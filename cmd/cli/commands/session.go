package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/services"
	"github.com/jakechorley/skillconnect/pkg/core/session"
	"github.com/jakechorley/skillconnect/pkg/utils/logging"
)

// LoginCmd creates the login command for community members
func LoginCmd(app *AppContext) *cobra.Command {
	return loginCmd(app, "login [email]", "Log in as a community member", false)
}

// AdminLoginCmd creates the adminLogin command
func AdminLoginCmd(app *AppContext) *cobra.Command {
	return loginCmd(app, "adminLogin [email]", "Log in as an administrator", true)
}

func loginCmd(app *AppContext, use, short string, admin bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The email defaults to the one remembered by a previous --remember login.
Without --password the password is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			remember, _ := cmd.Flags().GetBool("remember")

			email := app.Session.RememberedEmail(app.Ctx)
			if len(args) > 0 {
				email = args[0]
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				var err error
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			creds := apiclient.Credentials{Email: strings.TrimSpace(email), Password: password}
			if err := services.ValidateLoginForm(creds); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if admin {
				a, err := app.Session.LoginAdmin(app.Ctx, creds, remember)
				if err != nil {
					return err
				}
				app.Logger.Debug("Admin session stored", logging.MaskToken(app.Session.Token(app.Ctx)))
				fmt.Fprintf(out, "\n✓ Logged in as admin %s (%s)\n", a.Name, a.Email)
				return nil
			}

			u, err := app.Session.LoginUser(app.Ctx, creds, remember)
			if err != nil {
				return err
			}
			app.Logger.Debug("User session stored", logging.MaskToken(app.Session.Token(app.Ctx)))
			fmt.Fprintf(out, "\n✓ Welcome back, %s %s\n", u.FirstName, u.LastName)
			if !u.IsVerified {
				fmt.Fprintln(out, "⚠️  Your account is awaiting verification. Some commands stay unavailable until then.")
			}
			return nil
		},
	}

	cmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	cmd.Flags().Bool("remember", false, "Remember the email for the next login")

	return cmd
}

// LogoutCmd creates the logout command
func LogoutCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Session.Logout(app.Ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

// WhoAmICmd creates the whoami command
func WhoAmICmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity after reconciling it with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.FetchProfile(app.Ctx); err != nil {
				return err
			}

			snap := app.Session.Snapshot()
			out := cmd.OutOrStdout()

			app.Logger.Debug("whoami", zap.Stringer("state", snap.State()))

			switch snap.State() {
			case session.Unauthenticated:
				fmt.Fprintln(out, "Not logged in")
				return nil
			case session.AdminAuthenticated:
				fmt.Fprintf(out, "Admin:  %s (%s)\n", snap.Admin.Name, snap.Admin.Email)
			default:
				fmt.Fprintf(out, "User:   %s %s (%s)\n", snap.User.FirstName, snap.User.LastName, snap.User.Email)
				fmt.Fprintf(out, "ID:     %s\n", snap.User.ID)
			}
			fmt.Fprintf(out, "State:  %s\n", snap.State())
			if last := app.Session.LastPath(app.Ctx); last != "" {
				fmt.Fprintf(out, "Last:   %s\n", last)
			}
			return nil
		},
	}
}

// readLine reads one line. Callers sharing a *bufio.Reader keep its buffered input.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
