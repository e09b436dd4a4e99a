package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/passprotect/internal/client/api"
	"github.com/iudanet/passprotect/internal/client/storage"
	apitypes "github.com/iudanet/passprotect/pkg/api"
)

func newStatusCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runStatus(cmd)
		},
	}
}

func (c *Cli) runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()

	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Status: Not authenticated")
			c.io.Println("Run 'passprotect login' to authenticate.")
			return nil
		}
		return fmt.Errorf("failed to read session: %w", err)
	}

	if session.Expired(c.now()) {
		c.dropSession(ctx)
		c.io.Println("Status: Session expired")
		c.io.Println("Run 'passprotect login' to authenticate again.")
		return nil
	}

	me, err := c.client.WithToken(session.Token).Me(ctx)
	if err != nil {
		if api.IsSessionError(err) {
			c.dropSession(ctx)
			if api.ErrorCode(err) == apitypes.CodeTokenExpired {
				c.io.Println("Status: Session expired")
			} else {
				c.io.Println("Status: Invalid session")
			}
			c.io.Println("Run 'passprotect login' to authenticate again.")
			return nil
		}
		return err
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s (id %d)\n", me.Username, me.UserID)
	c.io.Printf("Roles: %s\n", strings.Join(me.Roles, ", "))
	c.io.Printf("Allowed operations: %s\n", strings.Join(me.AllowedOperations, ", "))
	c.io.Printf("Session expires: %s (in %s)\n",
		me.ExpiresAt.Local().Format(time.RFC3339),
		me.ExpiresAt.Sub(c.now()).Round(time.Second),
	)
	return nil
}
