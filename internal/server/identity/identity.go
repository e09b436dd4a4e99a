// Package identity carries the verified caller through a request.
package identity

import (
	"context"
	"time"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/token"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller as asserted by a verified token. It is the only
// source of the user id used to scope data operations.
type Identity struct {
	ExpiresAt time.Time
	Username  string
	Roles     []string
	UserID    int64
}

// FromClaims builds an Identity from verified token claims.
func FromClaims(c *token.Claims) (Identity, error) {
	id, err := c.UserID()
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindTokenInvalid, "identity.from_claims", err)
	}

	out := Identity{
		UserID:   id,
		Username: c.Username,
		Roles:    append([]string{}, c.Roles...),
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// Verify checks a raw token with codec and returns the identity it asserts.
func Verify(codec *token.Codec, raw string) (Identity, error) {
	claims, err := codec.Verify(raw)
	if err != nil {
		return Identity{}, err
	}
	return FromClaims(claims)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
