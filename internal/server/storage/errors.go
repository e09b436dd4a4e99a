package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username or email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrRoleNotFound indicates that role was not found in storage
	ErrRoleNotFound = errors.New("role not found")

	// ErrUnknownColumn indicates a field name outside the record table
	ErrUnknownColumn = errors.New("unknown column")

	// ErrImmutableColumn indicates an attempt to change the id or owner of a record
	ErrImmutableColumn = errors.New("column cannot be changed")

	// ErrEmptyConditions indicates an unconditional update or delete
	ErrEmptyConditions = errors.New("conditions required")
)
