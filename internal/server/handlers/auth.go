package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/authn"
	"github.com/iudanet/passprotect/internal/server/authz"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/pkg/api"
)

// maxLoginBody ограничивает размер тела запроса логина
const maxLoginBody = 1 << 16

// LoginService authenticates credentials and issues a session.
type LoginService interface {
	Login(ctx context.Context, username, password string) (*authn.Session, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger       *slog.Logger
	sessions     LoginService
	policy       *authz.Policy
	cookieSecure bool
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, sessions LoginService, policy *authz.Policy, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		sessions:     sessions,
		policy:       policy,
		cookieSecure: cookieSecure,
	}
}

// Login обрабатывает POST /api/v1/auth/login.
// Принимает JSON или application/x-www-form-urlencoded.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeLogin(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		SendError(w, h.logger, api.CodeValidation, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown || apperr.IsKind(err, apperr.KindStorage) {
			h.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
		}
		WriteError(w, h.logger, err)
		return
	}

	SetSessionCookie(w, session.Token, session.Identity.ExpiresAt, h.cookieSecure)

	sendJSON(w, h.logger, api.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.Identity.ExpiresAt,
		Username:  session.Identity.Username,
		Roles:     session.Identity.Roles,
		UserID:    session.Identity.UserID,
	}, http.StatusOK)
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (api.LoginRequest, error) {
	var req api.LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// Logout обрабатывает POST /api/v1/auth/logout.
// Сервер не хранит сессии: достаточно удалить cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, apperr.New(apperr.KindTokenInvalid, "handlers.me", "no identity in context"))
		return
	}

	sendJSON(w, h.logger, api.MeResponse{
		UserID:            id.UserID,
		Username:          id.Username,
		Roles:             id.Roles,
		AllowedOperations: h.policy.AllowedOperations(id.Roles).Sorted(),
		ExpiresAt:         id.ExpiresAt,
	}, http.StatusOK)
}
