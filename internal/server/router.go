package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/passprotect/internal/server/handlers"
	"github.com/iudanet/passprotect/internal/server/metrics"
	"github.com/iudanet/passprotect/internal/server/middleware"
	"github.com/iudanet/passprotect/internal/server/token"
	"github.com/iudanet/passprotect/pkg/api"
)

// Routes bundles what the router needs.
type Routes struct {
	Logger       *slog.Logger
	Codec        *token.Codec
	Limiter      *middleware.RateLimiter
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Tools        *handlers.ToolsHandler
	Chat         *handlers.ChatHandler
	CookieSecure bool
}

// NewRouter wires handlers and middleware into the HTTP surface.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.LoggingWithSkip(rt.Logger, []string{"/metrics", "/api/v1/health"}))
	r.Use(middleware.RecoveryMiddleware(rt.Logger))
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, rt.Logger, api.CodeNotFound, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, rt.Logger, api.CodeValidation, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.Health.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(rt.Limiter.Middleware).Post("/login", rt.Auth.Login)
			r.Post("/logout", rt.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(rt.Logger, rt.Codec, rt.CookieSecure))

			r.Get("/me", rt.Auth.Me)
			r.Get("/tools", rt.Tools.List)
			r.Post("/tools/{name}", rt.Tools.Invoke)
			r.Post("/chat", rt.Chat.Chat)
		})
	})

	return r
}
