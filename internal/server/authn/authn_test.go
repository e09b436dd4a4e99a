package authn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
	"github.com/iudanet/passprotect/internal/server/storage/sqldb"
	"github.com/iudanet/passprotect/internal/server/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStorage(t *testing.T) (*sqldb.Storage, func()) {
	s, err := sqldb.New(context.Background(), sqldb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	return s, func() { _ = s.Close() }
}

func createUser(t *testing.T, s *sqldb.Storage, username, password string, enabled, archived bool, roles ...string) int64 {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Enabled:      enabled,
		Archived:     archived,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	for _, r := range roles {
		require.NoError(t, s.AssignRole(ctx, user.ID, r))
	}
	return user.ID
}

func TestVerifier_Authenticate(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	aliceID := createUser(t, s, "alice", "s3cret", true, false)
	createUser(t, s, "disabled", "s3cret", false, false)
	createUser(t, s, "archived", "s3cret", true, true)

	v := NewVerifier(s, s, testLogger())

	tests := []struct {
		name       string
		username   string
		password   string
		wantReason string
		wantID     int64
	}{
		{name: "valid credentials", username: "alice", password: "s3cret", wantID: aliceID},
		{name: "wrong password", username: "alice", password: "nope", wantReason: "password mismatch"},
		{name: "unknown user", username: "mallory", password: "s3cret", wantReason: "user not found"},
		{name: "empty username", username: "", password: "s3cret", wantReason: "empty username or password"},
		{name: "empty password", username: "alice", password: "", wantReason: "empty username or password"},
		{name: "disabled account", username: "disabled", password: "s3cret", wantReason: "account disabled"},
		{name: "archived account", username: "archived", password: "s3cret", wantReason: "account archived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Authenticate(ctx, tt.username, tt.password)
			if tt.wantReason != "" {
				require.Error(t, err)
				assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
				assert.Equal(t, "invalid username or password", apperr.PublicMessage(err))

				var e *apperr.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.wantReason, e.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.UserIdentity{ID: tt.wantID, Username: "alice", Email: "alice@example.com"}, id)
		})
	}
}

func TestVerifier_Authenticate_AlwaysComparesHash(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createUser(t, s, "alice", "s3cret", true, false)
	createUser(t, s, "disabled", "s3cret", false, false)
	createUser(t, s, "archived", "s3cret", true, true)

	v := NewVerifier(s, s, testLogger())
	var compared [][]byte
	v.compare = func(hash, password []byte) error {
		compared = append(compared, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	tests := []struct {
		name     string
		username string
		dummy    bool
	}{
		{name: "wrong password", username: "alice"},
		{name: "unknown user", username: "mallory", dummy: true},
		{name: "disabled account", username: "disabled", dummy: true},
		{name: "archived account", username: "archived", dummy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compared = nil

			_, err := v.Authenticate(ctx, tt.username, "nope")
			require.Error(t, err)
			require.Len(t, compared, 1)
			assert.Equal(t, tt.dummy, string(compared[0]) == string(dummyHash()))
		})
	}
}

func TestVerifier_LoadRoles(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	withRoles := createUser(t, s, "bob", "pw", true, false, "user", "readonly")
	without := createUser(t, s, "carol", "pw", true, false)

	v := NewVerifier(s, s, testLogger())

	roles, err := v.LoadRoles(ctx, withRoles)
	require.NoError(t, err)
	assert.Equal(t, []string{"readonly", "user"}, roles)

	roles, err = v.LoadRoles(ctx, without)
	require.NoError(t, err)
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	id := createUser(t, s, "dave", "pw", true, false, "generalUser")
	codec := token.NewCodec("test-secret")
	svc := NewService(NewVerifier(s, s, testLogger()), codec, s, testLogger())

	session, err := svc.Login(ctx, "dave", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, id, session.Identity.UserID)
	assert.Equal(t, "dave", session.Identity.Username)
	assert.Equal(t, []string{"generalUser"}, session.Identity.Roles)
	assert.WithinDuration(t, time.Now().Add(token.Lifetime), session.Identity.ExpiresAt, 5*time.Second)

	claims, err := codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "dave", claims.Username)

	user, err := s.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, user.LastLogin)
}

func TestService_Login_BadCredentials(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createUser(t, s, "erin", "pw", true, false, "admin")
	svc := NewService(NewVerifier(s, s, testLogger()), token.NewCodec("k"), s, testLogger())

	session, err := svc.Login(context.Background(), "erin", "wrong")
	assert.Nil(t, session)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
}

func TestService_Login_MissingSecret(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createUser(t, s, "frank", "pw", true, false)
	svc := NewService(NewVerifier(s, s, testLogger()), token.NewCodec(""), s, testLogger())

	_, err := svc.Login(context.Background(), "frank", "pw")
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}

// lastLoginFailing wraps real storage but fails last-login updates.
type lastLoginFailing struct {
	storage.UserStorage
}

func (lastLoginFailing) UpdateLastLogin(context.Context, int64, time.Time) error {
	return errors.New("disk full")
}

func TestService_Login_LastLoginFailureIsNotFatal(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createUser(t, s, "gina", "pw", true, false, "readonly")
	svc := NewService(NewVerifier(s, s, testLogger()), token.NewCodec("k"), lastLoginFailing{s}, testLogger())

	session, err := svc.Login(context.Background(), "gina", "pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"readonly"}, session.Identity.Roles)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}
