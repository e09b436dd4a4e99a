package authn

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/metrics"
	"github.com/iudanet/passprotect/internal/server/storage"
	"github.com/iudanet/passprotect/internal/server/token"
)

// Session is the outcome of a successful login.
type Session struct {
	Token    string
	Email    string
	Identity identity.Identity
}

// Service performs the login flow: verify, load roles, issue token.
type Service struct {
	verifier *Verifier
	codec    *token.Codec
	users    storage.UserStorage
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new login service
func NewService(verifier *Verifier, codec *token.Codec, users storage.UserStorage, logger *slog.Logger) *Service {
	return &Service{
		verifier: verifier,
		codec:    codec,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// Login authenticates the user and issues a token carrying the roles held at
// this moment. A failure to record the login time is logged and ignored.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.verifier.Authenticate(ctx, username, password)
	if err != nil {
		metrics.RecordAuth(metrics.AuthLoginFailed)
		s.logger.Info("Login failed",
			slog.String("username", username),
			slog.Any("error", err),
		)
		return nil, err
	}

	roles, err := s.verifier.LoadRoles(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to load roles", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	raw, err := s.codec.Issue(user.ID, user.Username, roles)
	if err != nil {
		s.logger.Error("Failed to issue token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	id, err := identity.Verify(s.codec, raw)
	if err != nil {
		s.logger.Error("Issued token does not verify", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("Failed to update last login", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	metrics.RecordAuth(metrics.AuthLoginOK)
	s.logger.Info("User logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Any("roles", roles),
	)

	return &Session{Token: raw, Email: user.Email, Identity: id}, nil
}
