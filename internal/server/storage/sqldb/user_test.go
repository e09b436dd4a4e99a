package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
)

func TestUserStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		Enabled:      true,
	}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NotZero(t, user.ID)

	retrieved, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", retrieved.Username)
	assert.Equal(t, "alice@example.com", retrieved.Email)
	assert.Equal(t, "$2a$10$hash", retrieved.PasswordHash)
	assert.True(t, retrieved.Enabled)
	assert.False(t, retrieved.Archived)
	assert.Nil(t, retrieved.LastLogin)
}

func TestUserStorage_CreateUser_Duplicate(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "bob")

	tests := []struct {
		user *models.User
		name string
	}{
		{
			name: "same username",
			user: &models.User{Username: "bob", Email: "other@example.com", PasswordHash: "h"},
		},
		{
			name: "same email",
			user: &models.User{Username: "bobby", Email: "bob@example.com", PasswordHash: "h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, tt.user)
			assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
		})
	}
}

func TestUserStorage_GetUserByUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	id := createTestUser(t, ctx, s, "carol")

	tests := []struct {
		wantError error
		name      string
		username  string
		wantID    int64
	}{
		{name: "existing user", username: "carol", wantID: id},
		{name: "missing user", username: "nobody", wantError: storage.ErrUserNotFound},
		{name: "username is case sensitive", username: "Carol", wantError: storage.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := s.GetUserByUsername(ctx, tt.username)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestUserStorage_GetUserByID_NotFound(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetUserByID(context.Background(), 4242)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	id := createTestUser(t, ctx, s, "dave")
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpdateLastLogin(ctx, id, now))

	user, err := s.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, now, *user.LastLogin, time.Second)

	err = s.UpdateLastLogin(ctx, id+100, now)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
