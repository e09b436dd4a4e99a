// Package admin holds the account maintenance operations behind the
// server's useradd, grant and archive-role commands.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/authn"
	"github.com/iudanet/passprotect/internal/server/authz"
	"github.com/iudanet/passprotect/internal/server/storage"
	"github.com/iudanet/passprotect/internal/validation"
)

// NewUser describes an account to create.
type NewUser struct {
	Username string
	Email    string
	Password string
	Roles    []string
	Disabled bool
}

// Service creates users and manages role assignments.
type Service struct {
	users  storage.UserStorage
	roles  storage.RoleStorage
	logger *slog.Logger
}

// New creates a new admin service
func New(users storage.UserStorage, roles storage.RoleStorage, logger *slog.Logger) *Service {
	return &Service{users: users, roles: roles, logger: logger}
}

// CreateUser validates and stores a user with a bcrypt-hashed password, then
// assigns the requested roles.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	const op = "admin.create_user"

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	hash, err := authn.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Enabled:      !in.Disabled,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, apperr.Validation(op, "user %q already exists", in.Username)
		}
		return nil, apperr.Storage(op, err)
	}

	s.logger.Info("User created", slog.Int64("user_id", user.ID), slog.String("username", user.Username))

	for _, role := range in.Roles {
		if err := s.Grant(ctx, user.Username, role); err != nil {
			return user, err
		}
	}

	return user, nil
}

// Grant assigns role to username, creating the role if needed. Granting a
// role the user already holds is a no-op.
func (s *Service) Grant(ctx context.Context, username, role string) error {
	const op = "admin.grant"

	role = strings.TrimSpace(role)
	if role == "" {
		return apperr.Validation(op, "role cannot be empty")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.New(apperr.KindNotFound, op, fmt.Sprintf("user %q not found", username))
		}
		return apperr.Storage(op, err)
	}

	if !slices.Contains(KnownRoles(), role) {
		s.logger.Warn("Granting a role that grants no operations", slog.String("role", role))
	}

	if err := s.roles.AssignRole(ctx, user.ID, role); err != nil {
		return apperr.Storage(op, err)
	}

	s.logger.Info("Role granted", slog.String("username", username), slog.String("role", role))
	return nil
}

// ArchiveRole stops role from counting toward anyone's permissions.
func (s *Service) ArchiveRole(ctx context.Context, role string) error {
	const op = "admin.archive_role"

	if err := s.roles.ArchiveRole(ctx, role); err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			return apperr.New(apperr.KindNotFound, op, fmt.Sprintf("role %q not found", role))
		}
		return apperr.Storage(op, err)
	}

	s.logger.Info("Role archived", slog.String("role", role))
	return nil
}

// KnownRoles lists the role names the policy recognises.
func KnownRoles() []string {
	return []string{authz.RoleAdmin, authz.RoleUser, authz.RoleGeneralUser, authz.RoleReadonly}
}
