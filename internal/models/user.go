package models

import "time"

// User is an account row. PasswordHash is a bcrypt hash and never leaves the
// authentication layer.
type User struct {
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	ID           int64      `json:"id"`
	Enabled      bool       `json:"enabled"`
	Archived     bool       `json:"archived"`
}

// CanAuthenticate reports whether the account status allows a login.
func (u *User) CanAuthenticate() bool {
	return u.Enabled && !u.Archived
}

// Identity returns the non-sensitive part of the user.
func (u *User) Identity() UserIdentity {
	return UserIdentity{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserIdentity is what a successful authentication hands upward.
type UserIdentity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	ID       int64  `json:"id"`
}

// Role is a named permission tier. Archived roles do not count toward authorization.
type Role struct {
	Name     string `json:"name"`
	ID       int64  `json:"id"`
	Archived bool   `json:"archived"`
}
