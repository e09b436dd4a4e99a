package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/client/storage"
	"github.com/iudanet/passprotect/pkg/api"
)

func newLoginCommand(get func() *Cli) *cobra.Command {
	var (
		username     string
		passwordFile string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runLogin(cmd, username, passwordFile)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "read the password from this file")

	return cmd
}

func (c *Cli) runLogin(cmd *cobra.Command, username, passwordFile string) error {
	ctx := cmd.Context()

	username = strings.TrimSpace(username)
	if username == "" {
		u, err := c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = u
	}
	if username == "" {
		return errors.New("username cannot be empty")
	}

	password, err := c.readPassword(passwordFile)
	if err != nil {
		return err
	}

	resp, err := c.client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}

	session := &storage.Session{
		Token:     resp.Token,
		Username:  resp.Username,
		UserID:    resp.UserID,
		Roles:     resp.Roles,
		ExpiresAt: resp.ExpiresAt,
		CreatedAt: c.now().UTC(),
		Server:    c.client.BaseURL(),
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", resp.Username)
	c.io.Printf("Roles: %s\n", strings.Join(resp.Roles, ", "))
	c.io.Printf("Session expires: %s\n", resp.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}
