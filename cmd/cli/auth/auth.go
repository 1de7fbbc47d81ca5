package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/crucial707/inkwell/cmd/cli/config"
	"github.com/crucial707/inkwell/cmd/cli/output"
	"github.com/crucial707/inkwell/internal/session"
	"github.com/spf13/cobra"
)

// ==========================
// Init Auth Commands
// ==========================
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), registerCmd(), logoutCmd(), whoamiCmd())
}

// readPassword reads one line from in when no --password flag was given.
func readPassword(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password = strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

// ==========================
// Login
// ==========================
func loginCmd() *cobra.Command {
	var identifier, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an email address or username",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier == "" {
				return errors.New("--identifier is required")
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}

			c, manager, err := config.Open()
			if err != nil {
				return err
			}
			res, err := c.Login(cmd.Context(), identifier, pw)
			if err != nil {
				return err
			}
			if err := manager.Start(res.Token, res.User); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", res.User.Username, res.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "i", "", "Email address or username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

// ==========================
// Register
// ==========================
func registerCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			c, manager, err := config.Open()
			if err != nil {
				return err
			}
			res, err := c.Register(cmd.Context(), username, email, pw)
			if err != nil {
				return err
			}
			if err := manager.Start(res.Token, res.User); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", res.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (3-30 characters)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// ==========================
// Logout
// ==========================
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := config.Open()
			if err != nil {
				return err
			}
			if err := manager.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// ==========================
// Whoami
// ==========================
func whoamiCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, manager, err := config.Open()
			if err != nil {
				return err
			}
			sess, err := manager.Revalidate(cmd.Context(), c)
			if errors.Is(err, session.ErrNoSession) {
				return config.ErrNotLoggedIn
			}
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), sess.User)
			}
			output.RenderFields(cmd.OutOrStdout(), [][2]interface{}{
				{"ID", sess.User.ID},
				{"Username", sess.User.Username},
				{"Email", sess.User.Email},
				{"Role", sess.User.Role},
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}
