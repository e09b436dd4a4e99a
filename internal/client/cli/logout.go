package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/client/storage"
)

func newLogoutCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runLogout(cmd)
		},
	}
}

func (c *Cli) runLogout(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if _, err := c.store.GetSession(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to read session: %w", err)
	}

	// Токены не отзываются на сервере; ошибка сети не мешает выйти локально
	if err := c.client.Logout(ctx); err != nil {
		c.logger.Warn("server logout failed", slog.Any("error", err))
	}

	if err := c.store.DeleteSession(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	c.io.Println("✓ Logged out.")
	return nil
}
