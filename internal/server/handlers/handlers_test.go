package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/authn"
	"github.com/iudanet/passprotect/internal/server/authz"
	"github.com/iudanet/passprotect/internal/server/gateway"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/orchestrator"
	"github.com/iudanet/passprotect/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestPolicy(t *testing.T) *authz.Policy {
	t.Helper()
	p, err := authz.NewPolicy()
	require.NoError(t, err)
	return p
}

func withIdentity(r *http.Request, id identity.Identity) *http.Request {
	return r.WithContext(identity.WithIdentity(r.Context(), id))
}

func decodeError(t *testing.T, body io.Reader) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

var alice = identity.Identity{
	UserID:    7,
	Username:  "alice",
	Roles:     []string{authz.RoleUser},
	ExpiresAt: time.Now().Add(time.Hour),
}

type fakeLogin struct {
	err      error
	username string
	password string
}

func (f *fakeLogin) Login(ctx context.Context, username, password string) (*authn.Session, error) {
	f.username, f.password = username, password
	if f.err != nil {
		return nil, f.err
	}
	return &authn.Session{Token: "signed.token.value", Identity: alice}, nil
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		loginErr    error
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "json success",
			contentType: "application/json",
			body:        `{"username":"alice","password":"pw"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "form success",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"username": {"alice"}, "password": {"pw"}}.Encode(),
			wantStatus:  http.StatusOK,
		},
		{
			name:        "bad json",
			contentType: "application/json",
			body:        `{"username":`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    api.CodeValidation,
		},
		{
			name:        "wrong credentials",
			contentType: "application/json",
			body:        `{"username":"alice","password":"nope"}`,
			loginErr:    apperr.Authentication("authn.authenticate", "password mismatch"),
			wantStatus:  http.StatusUnauthorized,
			wantCode:    api.CodeAuthentication,
		},
		{
			name:        "storage failure",
			contentType: "application/json",
			body:        `{"username":"alice","password":"pw"}`,
			loginErr:    apperr.Storage("authn.authenticate", errors.New("db down")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    api.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			login := &fakeLogin{err: tt.loginErr}
			h := NewAuthHandler(setupTestLogger(), login, setupTestPolicy(t), true)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantCode != "" {
				resp := decodeError(t, rec.Body)
				assert.Equal(t, tt.wantCode, resp.Error)
				assert.NotContains(t, resp.Message, "password mismatch")
				assert.NotContains(t, resp.Message, "db down")
				assert.Empty(t, rec.Result().Cookies())
				return
			}

			assert.Equal(t, "alice", login.username)
			assert.Equal(t, "pw", login.password)

			var resp api.LoginResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "signed.token.value", resp.Token)
			assert.Equal(t, int64(7), resp.UserID)
			assert.Equal(t, []string{authz.RoleUser}, resp.Roles)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, SessionCookieName, cookies[0].Name)
			assert.Equal(t, "signed.token.value", cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)
			assert.True(t, cookies[0].Secure)
			assert.Positive(t, cookies[0].MaxAge)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	h := NewAuthHandler(setupTestLogger(), &fakeLogin{}, setupTestPolicy(t), false)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(setupTestLogger(), &fakeLogin{}, setupTestPolicy(t), false)

	t.Run("with identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), alice))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp api.MeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "alice", resp.Username)
		assert.Equal(t, []string{
			"create_record", "get_table_schema", "read_password", "read_records", "update_record",
		}, resp.AllowedOperations)
	})

	t.Run("without identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.CodeTokenInvalid, decodeError(t, rec.Body).Error)
	})
}

type fakeGateway struct {
	result *gateway.Result
	err    error
	gotID  identity.Identity
	gotArg json.RawMessage
	gotFor string
}

func (f *fakeGateway) Tools(roles []string) []gateway.Tool {
	return []gateway.Tool{{Name: "read_password", Description: "d", InputSchema: json.RawMessage(`{"type":"object"}`)}}
}

func (f *fakeGateway) Invoke(ctx context.Context, id identity.Identity, name string, args json.RawMessage) (*gateway.Result, error) {
	f.gotID, f.gotFor, f.gotArg = id, name, args
	return f.result, f.err
}

func serveTool(h *ToolsHandler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/api/v1/tools/{name}", h.Invoke)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestToolsHandler_List(t *testing.T) {
	h := NewToolsHandler(setupTestLogger(), &fakeGateway{})

	rec := httptest.NewRecorder()
	h.List(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil), alice))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.ToolsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "read_password", resp.Tools[0].Name)
	assert.JSONEq(t, `{"type":"object"}`, string(resp.Tools[0].InputSchema))
}

func TestToolsHandler_Invoke(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "denied", err: apperr.Authorization("gateway.invoke", "delete_record"), wantStatus: http.StatusForbidden, wantCode: api.CodeAuthorization},
		{name: "invalid args", err: apperr.Validation("gateway.invoke", "Unknown column: foo"), wantStatus: http.StatusBadRequest, wantCode: api.CodeValidation},
		{name: "storage", err: apperr.Storage("gateway.invoke", errors.New("disk")), wantStatus: http.StatusInternalServerError, wantCode: api.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{err: tt.err}
			if tt.err == nil {
				gw.result = &gateway.Result{Text: "Password for Gmail:", Payload: []map[string]any{{"id": 1}}}
			}
			h := NewToolsHandler(setupTestLogger(), gw)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/read_password", strings.NewReader(`{"company":"gmail"}`))
			rec := serveTool(h, withIdentity(req, alice))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "read_password", gw.gotFor)
			assert.Equal(t, int64(7), gw.gotID.UserID)
			assert.JSONEq(t, `{"company":"gmail"}`, string(gw.gotArg))

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec.Body).Error)
				return
			}
			var resp api.ToolResult
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "Password for Gmail:", resp.Text)
			assert.NotNil(t, resp.Payload)
		})
	}
}

func TestToolsHandler_Invoke_NoIdentity(t *testing.T) {
	gw := &fakeGateway{}
	h := NewToolsHandler(setupTestLogger(), gw)

	rec := serveTool(h, httptest.NewRequest(http.MethodPost, "/api/v1/tools/read_records", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, gw.gotFor, "gateway must not be reached")
}

type fakeConversation struct {
	result  *orchestrator.TurnResult
	err     error
	history []orchestrator.Message
	message string
}

func (f *fakeConversation) Turn(ctx context.Context, id identity.Identity, message string, history []orchestrator.Message) (*orchestrator.TurnResult, error) {
	f.message, f.history = message, history
	return f.result, f.err
}

func TestChatHandler_Chat(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		conv := &fakeConversation{result: &orchestrator.TurnResult{
			Response: "Your Gmail password is hunter2",
			ToolCalls: []orchestrator.ToolCallInfo{
				{Name: "read_password", Arguments: json.RawMessage(`{"company":"gmail"}`)},
			},
		}}
		h := NewChatHandler(setupTestLogger(), conv)

		body := `{"message":"gmail password?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body)), alice)
		rec := httptest.NewRecorder()
		h.Chat(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gmail password?", conv.message)
		require.Len(t, conv.history, 2)
		assert.Equal(t, orchestrator.RoleAssistant, conv.history[1].Role)

		var resp api.ChatResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Your Gmail password is hunter2", resp.Response)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "read_password", resp.ToolCalls[0].Name)
	})

	t.Run("empty message", func(t *testing.T) {
		conv := &fakeConversation{err: apperr.Validation("orchestrator.turn", "Message is required")}
		h := NewChatHandler(setupTestLogger(), conv)

		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":""}`)), alice)
		rec := httptest.NewRecorder()
		h.Chat(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec.Body)
		assert.Equal(t, api.CodeValidation, resp.Error)
		assert.Equal(t, "Message is required", resp.Message)
	})

	t.Run("planner failure is internal", func(t *testing.T) {
		conv := &fakeConversation{err: errors.New("planner call failed: connection refused")}
		h := NewChatHandler(setupTestLogger(), conv)

		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`)), alice)
		rec := httptest.NewRecorder()
		h.Chat(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, decodeError(t, rec.Body).Message, "connection refused")
	})
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{name: "ok", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "db down", pingErr: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(setupTestLogger(), fakePinger{err: tt.pingErr})
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp api.HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantBody, resp.Status)
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		kind       apperr.Kind
		wantCode   string
		wantStatus int
	}{
		{apperr.KindAuthentication, api.CodeAuthentication, http.StatusUnauthorized},
		{apperr.KindTokenExpired, api.CodeTokenExpired, http.StatusUnauthorized},
		{apperr.KindTokenInvalid, api.CodeTokenInvalid, http.StatusUnauthorized},
		{apperr.KindAuthorization, api.CodeAuthorization, http.StatusForbidden},
		{apperr.KindValidation, api.CodeValidation, http.StatusBadRequest},
		{apperr.KindNotFound, api.CodeNotFound, http.StatusNotFound},
		{apperr.KindStorage, api.CodeInternal, http.StatusInternalServerError},
		{apperr.KindConfiguration, api.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			code, status := errorStatus(tt.kind)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}
