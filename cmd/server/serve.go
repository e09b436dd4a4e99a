package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/server"
	"github.com/iudanet/passprotect/internal/server/config"
)

// loadConfig reads configuration and builds the process logger.
func loadConfig(cmd *cobra.Command, envFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(os.Stderr), nil
}

func newServeCommand(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig(cmd, *envFile)
			if err != nil {
				return err
			}
			logger.Info("Starting PassProtect server",
				slog.String("version", Version),
				slog.Any("config", cfg.Redacted()),
			)

			srv, err := server.New(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					logger.Error("failed to close server", slog.Any("error", err))
				}
			}()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("http-addr", "", "listen address")
	cmd.Flags().Bool("cookie-secure", false, "mark the session cookie Secure")
	cmd.Flags().Bool("trust-proxy-headers", false, "key the login rate limit by X-Forwarded-For / X-Real-IP")
	cmd.Flags().String("planner-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().String("planner-model", "", "planner model name")

	return cmd
}

func newMigrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, *envFile)
			if err != nil {
				return err
			}

			store, err := openStorage(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Info("Migrations applied", slog.String("driver", cfg.DBDriver))
			return nil
		},
	}
}
