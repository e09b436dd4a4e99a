// Package token issues and verifies the signed identity token carried by web
// sessions and the CLI session file.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/passprotect/internal/apperr"
)

// Lifetime is the fixed validity period of an issued token.
const Lifetime = 8 * time.Hour

// Claims is the token payload. Subject holds the decimal user id.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// UserID parses the numeric user id out of the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q is not a user id", c.Subject)
	}
	return id, nil
}

// Codec signs tokens with HMAC-SHA256 using a single shared secret.
type Codec struct {
	now    func() time.Time
	secret []byte
}

// NewCodec creates a codec. An empty secret is accepted here and reported as a
// configuration error on first use.
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue creates a token for the given identity, valid for Lifetime.
func (c *Codec) Issue(userID int64, username string, roles []string) (string, error) {
	if len(c.secret) == 0 {
		return "", apperr.Configuration("token.issue", "signing secret is not configured")
	}
	if roles == nil {
		roles = []string{}
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the claims. The error kind is
// apperr.KindTokenExpired for an expired token and apperr.KindTokenInvalid for
// anything malformed, tampered with or signed with another secret.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, apperr.Configuration("token.verify", "signing secret is not configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindTokenExpired, "token.verify", err)
		}
		return nil, apperr.Wrap(apperr.KindTokenInvalid, "token.verify", err)
	}

	if _, err := claims.UserID(); err != nil {
		return nil, apperr.Wrap(apperr.KindTokenInvalid, "token.verify", err)
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}

	return claims, nil
}
