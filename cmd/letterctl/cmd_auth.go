package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"letterflow/internal/cliconfig"
	"letterflow/internal/display"
	"letterflow/internal/lifecycle"
)

func (c *cli) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session in the profile",
		Long: `Sign in with a username and password. The password is read from
--password, then LETTERCTL_PASSWORD, then a line on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				password = os.Getenv("LETTERCTL_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			cl, err := c.newClient()
			if err != nil {
				return err
			}
			session, err := cl.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			c.rememberSession(session)
			if err := cliconfig.Save(c.profilePath, c.profile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", session.UserName, display.RoleLabel(session.Role))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.profile.SignedIn() {
				return errNotSignedIn
			}
			role := lifecycle.Role(c.profile.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) %s on %s\n", c.profile.UserName, c.profile.UserID, display.RoleLabel(role), c.profile.Server)
			return nil
		},
	}
}
