// Command letterctl drives letters through their approval lifecycle from the
// terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letterflow/internal/cliconfig"
	"letterflow/internal/client"
	"letterflow/internal/controller"
	"letterflow/internal/lifecycle"
	"letterflow/internal/logging"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	profilePath string
	server      string
	verbose     bool
	jsonOut     bool

	profile cliconfig.Profile
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "letterctl",
		Short: "Review, approve and archive official letters",
		Long: `letterctl talks to the letters API with the session stored in your
profile (~/.config/letterctl/profile.yaml by default).

LETTERCTL_SERVER, LETTERCTL_TOKEN and LETTERCTL_TIMEOUT override the profile.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.profilePath, "profile", "", "Profile file (default: ~/.config/letterctl/profile.yaml)")
	root.PersistentFlags().StringVar(&c.server, "server", "", "API base URL (overrides the profile)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log API calls to stderr")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print JSON instead of text")

	root.AddCommand(
		c.loginCmd(),
		c.whoamiCmd(),
		c.listCmd(),
		c.showCmd(),
		c.approveCmd(),
		c.rejectCmd(),
		c.editCmd(),
		c.regenerateCmd(),
		c.downloadCmd(),
		c.historyCmd(),
		c.transitionsCmd(),
		c.searchCmd(),
		c.typesCmd(),
	)
	return root
}

func (c *cli) setup() error {
	if c.verbose {
		logger, err := logging.New("debug", "console")
		if err != nil {
			return err
		}
		c.logger = logger
	}
	if c.profilePath == "" {
		path, err := cliconfig.DefaultPath()
		if err != nil {
			return err
		}
		c.profilePath = path
	}
	profile, err := cliconfig.Load(c.profilePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.server) != "" {
		profile.Server = strings.TrimSpace(c.server)
	}
	c.profile = profile
	return nil
}

func (c *cli) newClient() (*client.Client, error) {
	timeout, err := c.profile.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return client.New(c.profile.Server,
		client.WithToken(c.profile.Token),
		client.WithTimeout(timeout),
		client.WithLogger(c.logger),
	), nil
}

var errNotSignedIn = errors.New("not signed in: run letterctl login")

// withClient runs fn with an authenticated client. An expired access token is
// refreshed once and fn retried.
func (c *cli) withClient(ctx context.Context, fn func(*client.Client) error) error {
	if !c.profile.SignedIn() {
		return errNotSignedIn
	}
	cl, err := c.newClient()
	if err != nil {
		return err
	}
	err = fn(cl)
	if !client.IsStatus(err, http.StatusUnauthorized) || c.profile.RefreshToken == "" {
		return err
	}

	c.logger.Debug("access token rejected, refreshing session")
	session, refreshErr := cl.Refresh(ctx, c.profile.RefreshToken)
	if refreshErr != nil {
		return fmt.Errorf("session expired, run letterctl login: %w", refreshErr)
	}
	c.rememberSession(session)
	if err := cliconfig.Save(c.profilePath, c.profile); err != nil {
		return err
	}
	return fn(cl)
}

func (c *cli) rememberSession(session client.Session) {
	c.profile.Token = session.Token
	c.profile.RefreshToken = session.RefreshToken
	c.profile.UserID = session.UserID
	c.profile.UserName = session.UserName
	c.profile.Role = string(session.Role)
}

func (c *cli) actor() (lifecycle.Actor, error) {
	role, err := lifecycle.ParseRole(c.profile.Role)
	if err != nil {
		return lifecycle.Actor{}, fmt.Errorf("profile role: %w", err)
	}
	return lifecycle.Actor{ID: c.profile.UserID, Role: role}, nil
}

// withController loads letter id into a fresh controller bound to cl and runs fn.
func (c *cli) withController(ctx context.Context, id string, out io.Writer, fn func(*controller.Controller) error) error {
	actor, err := c.actor()
	if err != nil {
		return err
	}
	return c.withClient(ctx, func(cl *client.Client) error {
		ctrl := controller.New(cl, actor, controller.Options{
			Logger: c.logger,
			Opener: func(url string) { fmt.Fprintf(out, "Artifact: %s\n", url) },
		})
		if err := ctrl.Load(ctx, id); err != nil {
			return err
		}
		return fn(ctrl)
	})
}
