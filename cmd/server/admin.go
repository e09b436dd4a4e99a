package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/client/iocli"
	"github.com/iudanet/passprotect/internal/server/admin"
	"github.com/iudanet/passprotect/internal/server/config"
	"github.com/iudanet/passprotect/internal/server/storage/sqldb"
)

// newPasswordEnv lets scripts pass the new account password without a prompt.
const newPasswordEnv = "PASSPROTECT_NEW_PASSWORD"

func openStorage(cmd *cobra.Command, cfg *config.Config) (*sqldb.Storage, error) {
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("database DSN is not set")
	}
	store, err := sqldb.New(cmd.Context(), cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// withAdmin opens storage and runs fn with an admin service over it.
func withAdmin(cmd *cobra.Command, envFile string, fn func(svc *admin.Service) error) error {
	cfg, logger, err := loadConfig(cmd, envFile)
	if err != nil {
		return err
	}

	store, err := openStorage(cmd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(admin.New(store, store, logger))
}

func newUseraddCommand(envFile *string) *cobra.Command {
	var (
		in           admin.NewUser
		passwordFile string
	)

	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create a user account",
		Example: `  passprotect-server useradd alice --email alice@example.com --role user
  PASSPROTECT_NEW_PASSWORD=... passprotect-server useradd bot --email bot@example.com --role readonly`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Username = args[0]

			password, err := newPassword(passwordFile)
			if err != nil {
				return err
			}
			in.Password = password

			return withAdmin(cmd, *envFile, func(svc *admin.Service) error {
				user, err := svc.CreateUser(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d) with roles [%s]\n",
					user.Username, user.ID, strings.Join(in.Roles, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email address (required)")
	cmd.Flags().StringSliceVar(&in.Roles, "role", nil, "role to grant (repeatable): "+strings.Join(admin.KnownRoles(), ", "))
	cmd.Flags().BoolVar(&in.Disabled, "disabled", false, "create the account disabled")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "read the password from this file")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newPassword(passwordFile string) (string, error) {
	if env := os.Getenv(newPasswordEnv); env != "" {
		return env, nil
	}

	if passwordFile != "" {
		content, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(content), "\r\n"), nil
	}

	stdio := iocli.NewStdio()
	first, err := stdio.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	second, err := stdio.ReadPassword("Repeat password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func newGrantCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <role>",
		Short: "Grant a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, *envFile, func(svc *admin.Service) error {
				if err := svc.Grant(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Granted %s to %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newArchiveRoleCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive-role <role>",
		Short: "Archive a role so it no longer grants operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, *envFile, func(svc *admin.Service) error {
				if err := svc.ArchiveRole(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived role %s\n", args[0])
				return nil
			})
		},
	}
}
