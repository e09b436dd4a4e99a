package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
)

const userColumns = `id, "userName", email, password, enabled, archived, "lastLogin"`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := s.dialect.rebind(`
		INSERT INTO "user" ("userName", email, password, enabled, archived, "lastLogin")
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.Enabled,
			user.Archived,
			user.LastLogin,
		).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetUserByUsername retrieves user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := s.dialect.rebind(`SELECT ` + userColumns + ` FROM "user" WHERE "userName" = ?`)
	return s.getUser(ctx, query, username)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	query := s.dialect.rebind(`SELECT ` + userColumns + ` FROM "user" WHERE id = ?`)
	return s.getUser(ctx, query, userID)
}

func (s *Storage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, arg).Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Enabled,
			&user.Archived,
			&lastLogin,
		)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID int64, lastLogin time.Time) error {
	query := s.dialect.rebind(`UPDATE "user" SET "lastLogin" = ? WHERE id = ?`)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, lastLogin.UTC(), userID)
		if err != nil {
			return fmt.Errorf("failed to update last login: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rows == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	})
}
