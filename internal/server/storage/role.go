package storage

import "context"

// RoleStorage defines interface for roles and their assignment to users
type RoleStorage interface {
	// LoadRoles returns names of the user's non-archived roles ordered by name
	// Returns empty slice if the user has no active roles
	LoadRoles(ctx context.Context, userID int64) ([]string, error)

	// AssignRole grants the named role to the user, creating the role if needed
	// Assigning an already held role is a no-op
	AssignRole(ctx context.Context, userID int64, roleName string) error

	// ArchiveRole marks the named role archived
	// Returns ErrRoleNotFound if role doesn't exist
	ArchiveRole(ctx context.Context, roleName string) error
}
