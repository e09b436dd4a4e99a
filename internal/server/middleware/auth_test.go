package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/passprotect/internal/server/handlers"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/token"
	"github.com/iudanet/passprotect/pkg/api"
)

const testSecret = "test-secret-key"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identityEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.FromContext(r.Context())
		require.True(t, ok, "identity must be in context")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":  id.UserID,
			"username": id.Username,
			"roles":    id.Roles,
		})
	})
}

func TestSessionAuth(t *testing.T) {
	codec := token.NewCodec(testSecret)
	valid, err := codec.Issue(7, "alice", []string{"user"})
	require.NoError(t, err)

	past := time.Now().Add(-2 * token.Lifetime)
	expired, err := codec.WithClock(func() time.Time { return past }).Issue(7, "alice", []string{"user"})
	require.NoError(t, err)

	foreign, err := token.NewCodec("other-secret").Issue(7, "alice", []string{"admin"})
	require.NoError(t, err)

	tests := []struct {
		name         string
		header       string
		cookie       string
		wantStatus   int
		wantCode     string
		wantCleared  bool
		wantUsername string
	}{
		{name: "bearer token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantUsername: "alice"},
		{name: "cookie token", cookie: valid, wantStatus: http.StatusOK, wantUsername: "alice"},
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenInvalid},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenInvalid},
		{name: "expired cookie", cookie: expired, wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenExpired, wantCleared: true},
		{name: "expired bearer", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenExpired},
		{name: "foreign signature", cookie: foreign, wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenInvalid, wantCleared: true},
		{name: "garbage", header: "Bearer not.a.token", wantStatus: http.StatusUnauthorized, wantCode: api.CodeTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SessionAuth(discardLogger(), codec, false)(identityEcho(t))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantUsername, body["username"])
				assert.EqualValues(t, 7, body["user_id"])
				return
			}

			var errResp api.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, errResp.Error)
			assert.NotEmpty(t, errResp.Message)

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == handlers.SessionCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			assert.Equal(t, tt.wantCleared, cleared)
		})
	}
}

func TestSessionAuth_BearerWinsOverCookie(t *testing.T) {
	codec := token.NewCodec(testSecret)
	bearer, err := codec.Issue(1, "root", []string{"admin"})
	require.NoError(t, err)
	cookie, err := codec.Issue(2, "bob", []string{"readonly"})
	require.NoError(t, err)

	h := SessionAuth(discardLogger(), codec, false)(identityEcho(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: cookie})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "root", body["username"])
}
