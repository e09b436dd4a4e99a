package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/passprotect/internal/server/storage"
)

// LoadRoles returns names of the user's non-archived roles ordered by name
func (s *Storage) LoadRoles(ctx context.Context, userID int64) ([]string, error) {
	query := s.dialect.rebind(`
		SELECT r.name
		FROM role r
		JOIN users_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? AND r.archived = ?
		ORDER BY r.name
	`)

	roles := []string{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, userID, false)
		if err != nil {
			return fmt.Errorf("failed to query roles: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("failed to scan role: %w", err)
			}
			roles = append(roles, name)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return roles, nil
}

// AssignRole grants the named role to the user, creating the role if needed
func (s *Storage) AssignRole(ctx context.Context, userID int64, roleName string) error {
	insertRole := s.dialect.rebind(`INSERT INTO role (name) VALUES (?) ON CONFLICT (name) DO NOTHING`)
	selectRole := s.dialect.rebind(`SELECT id FROM role WHERE name = ?`)
	selectUser := s.dialect.rebind(`SELECT id FROM "user" WHERE id = ?`)
	link := s.dialect.rebind(`INSERT INTO users_roles (user_id, role_id) VALUES (?, ?) ON CONFLICT DO NOTHING`)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, selectUser, userID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserNotFound
			}
			return fmt.Errorf("failed to get user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertRole, roleName); err != nil {
			return fmt.Errorf("failed to insert role: %w", err)
		}

		var roleID int64
		if err := tx.QueryRowContext(ctx, selectRole, roleName).Scan(&roleID); err != nil {
			return fmt.Errorf("failed to get role: %w", err)
		}

		if _, err := tx.ExecContext(ctx, link, userID, roleID); err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}
		return nil
	})
}

// ArchiveRole marks the named role archived
func (s *Storage) ArchiveRole(ctx context.Context, roleName string) error {
	query := s.dialect.rebind(`UPDATE role SET archived = ? WHERE name = ?`)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, true, roleName)
		if err != nil {
			return fmt.Errorf("failed to archive role: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rows == 0 {
			return storage.ErrRoleNotFound
		}
		return nil
	})
}
