package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/server/handlers"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/metrics"
	"github.com/iudanet/passprotect/internal/server/token"
)

// SessionAuth проверяет токен из заголовка Authorization или из session cookie
// и кладет Identity в context. Протухший или поддельный токен дает 401,
// cookie при этом удаляется.
func SessionAuth(logger *slog.Logger, codec *token.Codec, cookieSecure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, fromCookie := extractToken(r)
			if raw == "" {
				handlers.WriteError(w, logger, apperr.New(apperr.KindTokenInvalid, "middleware.auth", "missing token"))
				return
			}

			id, err := identity.Verify(codec, raw)
			if err != nil {
				if fromCookie {
					handlers.ClearSessionCookie(w, cookieSecure)
				}

				if apperr.IsKind(err, apperr.KindTokenExpired) {
					metrics.RecordAuth(metrics.AuthTokenExpired)
					logger.Info("Session expired",
						"request_id", RequestIDFrom(r.Context()),
						"path", r.URL.Path,
					)
				} else {
					metrics.RecordAuth(metrics.AuthTokenInvalid)
					logger.Warn("Invalid session token",
						"request_id", RequestIDFrom(r.Context()),
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
				}

				handlers.WriteError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// extractToken prefers the Bearer header over the cookie.
func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), false
		}
		return "", false
	}

	if c, err := r.Cookie(handlers.SessionCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}
