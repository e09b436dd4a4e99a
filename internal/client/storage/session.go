package storage

import (
	"context"
	"time"
)

// SessionStore persists the CLI session between invocations.
type SessionStore interface {
	// SaveSession replaces the stored session.
	SaveSession(ctx context.Context, s *Session) error

	// GetSession returns the stored session or ErrSessionNotFound.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context) error
}

// Session is what the CLI remembers after a successful login. The token is
// the only credential; the other fields are for display.
type Session struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Server    string    `json:"server"`
	Roles     []string  `json:"roles"`
	UserID    int64     `json:"user_id"`
}

// Expired reports whether the token's expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
