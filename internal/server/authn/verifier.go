// Package authn verifies credentials and turns them into an identity token.
package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
)

// dummyHash is compared against when there is no usable account, so every
// rejected login costs one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("passprotect-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("authn: dummy hash: %v", err))
	}
	return hash
})

// Verifier checks a username/password pair and loads a user's roles.
type Verifier struct {
	users   storage.UserStorage
	roles   storage.RoleStorage
	logger  *slog.Logger
	compare func(hash, password []byte) error
}

// NewVerifier creates a new credential verifier
func NewVerifier(users storage.UserStorage, roles storage.RoleStorage, logger *slog.Logger) *Verifier {
	return &Verifier{
		users:   users,
		roles:   roles,
		logger:  logger,
		compare: bcrypt.CompareHashAndPassword,
	}
}

// Authenticate returns the identity of the user if the password matches and
// the account may log in. Every failure has kind apperr.KindAuthentication;
// the specific reason is kept on the error for logs only.
func (v *Verifier) Authenticate(ctx context.Context, username, password string) (models.UserIdentity, error) {
	const op = "authn.authenticate"

	if username == "" || password == "" {
		return models.UserIdentity{}, apperr.Authentication(op, "empty username or password")
	}

	user, err := v.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			v.rejectBlind(password)
			return models.UserIdentity{}, apperr.Authentication(op, "user not found")
		}
		v.logger.Error("Failed to load user", slog.String("username", username), slog.Any("error", err))
		return models.UserIdentity{}, apperr.Storage(op, err)
	}

	if user.Archived {
		v.rejectBlind(password)
		return models.UserIdentity{}, apperr.Authentication(op, "account archived")
	}
	if !user.Enabled {
		v.rejectBlind(password)
		return models.UserIdentity{}, apperr.Authentication(op, "account disabled")
	}

	if err := v.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.UserIdentity{}, apperr.Authentication(op, "password mismatch")
	}

	return user.Identity(), nil
}

// rejectBlind spends the same bcrypt work as a real password check.
func (v *Verifier) rejectBlind(password string) {
	_ = v.compare(dummyHash(), []byte(password))
}

// LoadRoles returns the user's active role names ordered by name.
func (v *Verifier) LoadRoles(ctx context.Context, userID int64) ([]string, error) {
	roles, err := v.roles.LoadRoles(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("authn.load_roles", fmt.Errorf("user %d: %w", userID, err))
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// HashPassword returns a bcrypt hash suitable for models.User.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
