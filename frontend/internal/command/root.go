package command

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/itchan-dev/legorachat/frontend/internal/apiclient"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/logger"
	"github.com/spf13/cobra"
)

const (
	envUsername = "LEGORACHAT_USERNAME"
	envPassword = "LEGORACHAT_PASSWORD"
)

// options are the global flags shared by every subcommand.
type options struct {
	apiURL   string
	username string
	password string
	logLevel string
}

// NewRootCmd builds the command tree. Every subcommand except login signs
// in first with the global credentials.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "legorachat",
		Short: "legorachat - command line client for LegoraChat",
		Long: `legorachat talks to a LegoraChat API server. Signing in with an unknown
username creates the account.

Credentials come from --username/--password or the LEGORACHAT_USERNAME and
LEGORACHAT_PASSWORD environment variables.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitializeWithWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api", "http://localhost:8080", "API server URL")
	root.PersistentFlags().StringVarP(&opts.username, "username", "u", os.Getenv(envUsername), "username to sign in as")
	root.PersistentFlags().StringVarP(&opts.password, "password", "p", os.Getenv(envPassword), "password")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(opts),
		newThreadsCmd(opts),
		newNewThreadCmd(opts),
		newMessagesCmd(opts),
		newSendCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// signIn returns a client acting as the configured user.
func signIn(ctx context.Context, opts *options) (*apiclient.APIClient, domain.User, error) {
	if opts.username == "" || opts.password == "" {
		return nil, domain.User{}, fmt.Errorf("--username and --password are required (or set %s and %s)", envUsername, envPassword)
	}
	client := apiclient.New(opts.apiURL)
	user, err := client.Login(ctx, opts.username, opts.password)
	if err != nil {
		return nil, domain.User{}, fmt.Errorf("login failed: %w", err)
	}
	logger.Log.Debug("signed in", "user_id", user.Id, "username", user.Username)
	return client, user, nil
}

func parseThreadId(raw string) (domain.ThreadId, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid thread id %q", raw)
	}
	return id, nil
}
