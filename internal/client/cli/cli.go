// Package cli implements the passprotect command-line client. It talks to
// the server over HTTP and keeps the session token in a local bbolt file.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/client/api"
	"github.com/iudanet/passprotect/internal/client/iocli"
	"github.com/iudanet/passprotect/internal/client/storage"
	"github.com/iudanet/passprotect/internal/client/storage/boltdb"
	apitypes "github.com/iudanet/passprotect/pkg/api"
)

// PasswordEnv is read by login before falling back to a password file or a prompt.
const PasswordEnv = "PASSPROTECT_PASSWORD"

// Options are the persistent flags shared by every command.
type Options struct {
	Server      string
	SessionFile string
	Timeout     time.Duration
}

// Cli holds what a command needs once flags are parsed.
type Cli struct {
	io     iocli.IO
	client *api.Client
	store  storage.SessionStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cli over an already opened session store.
func New(io iocli.IO, client *api.Client, store storage.SessionStore, logger *slog.Logger) *Cli {
	return &Cli{
		io:     io,
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// App is the passprotect command tree together with the session file it opens.
type App struct {
	root   *cobra.Command
	closer func() error
}

// NewApp builds the passprotect command tree. The session store is opened
// before a command runs and closed by Execute.
func NewApp(stdio iocli.IO, logger *slog.Logger, version string) *App {
	app := &App{}
	opts := &Options{}
	var c *Cli

	root := &cobra.Command{
		Use:           "passprotect",
		Short:         "PassProtect client: log in, run tools, chat",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := opts.SessionFile
			if path == "" {
				p, err := boltdb.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}

			store, err := boltdb.New(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to open session file: %w", err)
			}
			app.closer = store.Close
			c = New(stdio, api.NewClient(opts.Server, opts.Timeout), store, logger)
			return nil
		},
	}

	root.SetOut(stdio)
	root.SetErr(stdio)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.Server, "server", envOr("PASSPROTECT_SERVER", "http://localhost:8080"), "server URL")
	flags.StringVar(&opts.SessionFile, "session-file", os.Getenv("PASSPROTECT_SESSION_FILE"), "session file (default ~/.passprotect/session.db)")
	flags.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "request timeout")

	// Команды получают Cli лениво: он создается в PersistentPreRunE
	get := func() *Cli { return c }

	root.AddCommand(
		newLoginCommand(get),
		newLogoutCommand(get),
		newStatusCommand(get),
		newToolsCommand(get),
		newToolCommand(get),
		newChatCommand(get),
	)

	app.root = root
	return app
}

// Execute runs the command named by args (os.Args when nil) and releases
// the session file whatever the outcome.
func (a *App) Execute(ctx context.Context, args []string) error {
	if args != nil {
		a.root.SetArgs(args)
	}
	err := a.root.ExecuteContext(ctx)

	if a.closer != nil {
		closeErr := a.closer()
		a.closer = nil
		err = errors.Join(err, closeErr)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var errNotLoggedIn = errors.New("not authenticated. Please run 'passprotect login' first")

// authedClient returns a client carrying the stored token. An expired session
// is removed without contacting the server.
func (c *Cli) authedClient(ctx context.Context) (*api.Client, error) {
	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, errNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if session.Expired(c.now()) {
		c.dropSession(ctx)
		return nil, errors.New("session expired, please log in again")
	}

	return c.client.WithToken(session.Token), nil
}

// checkSession clears the stored session when the server rejected its token.
func (c *Cli) checkSession(ctx context.Context, err error) error {
	if !api.IsSessionError(err) {
		return err
	}
	c.dropSession(ctx)
	if api.ErrorCode(err) == apitypes.CodeTokenExpired {
		return errors.New("session expired, please log in again")
	}
	return errors.New("invalid session, please log in again")
}

func (c *Cli) dropSession(ctx context.Context) {
	if err := c.store.DeleteSession(ctx); err != nil {
		c.logger.Warn("failed to delete session", slog.Any("error", err))
	}
}

// readPassword: переменная окружения, затем файл, затем интерактивный ввод
func (c *Cli) readPassword(passwordFile string) (string, error) {
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}

	if passwordFile != "" {
		content, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimRight(string(content), "\r\n")
		if password == "" {
			return "", errors.New("password file is empty")
		}
		return password, nil
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}
