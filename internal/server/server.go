// Package server assembles the PassProtect HTTP server from its parts.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/passprotect/internal/server/authn"
	"github.com/iudanet/passprotect/internal/server/authz"
	"github.com/iudanet/passprotect/internal/server/config"
	"github.com/iudanet/passprotect/internal/server/gateway"
	"github.com/iudanet/passprotect/internal/server/handlers"
	"github.com/iudanet/passprotect/internal/server/middleware"
	"github.com/iudanet/passprotect/internal/server/orchestrator"
	"github.com/iudanet/passprotect/internal/server/storage/sqldb"
	"github.com/iudanet/passprotect/internal/server/token"
)

// Server owns the storage handle and the HTTP listener.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqldb.Storage
	limiter *middleware.RateLimiter
	handler http.Handler
}

// New opens storage (running migrations) and wires every component.
// The planner may be nil, in which case the HTTP planner from cfg is used.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, planner orchestrator.Planner) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := authz.NewPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	store, err := sqldb.New(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if planner == nil {
		planner = orchestrator.NewHTTPPlanner(cfg.PlannerURL, cfg.PlannerAPIKey, cfg.PlannerModel, cfg.PlannerTimeout)
	}

	codec := token.NewCodec(cfg.JWTSecret)
	verifier := authn.NewVerifier(store, store, logger)
	sessions := authn.NewService(verifier, codec, store, logger)
	gw := gateway.New(store, policy, logger)
	conv := orchestrator.New(planner, gw, policy, logger)
	limiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, 10*time.Minute, logger).
		TrustProxyHeaders(cfg.TrustProxyHeaders)

	handler := NewRouter(Routes{
		Logger:       logger,
		Codec:        codec,
		Limiter:      limiter,
		Health:       handlers.NewHealthHandler(logger, store.DB()),
		Auth:         handlers.NewAuthHandler(logger, sessions, policy, cfg.CookieSecure),
		Tools:        handlers.NewToolsHandler(logger, gw),
		Chat:         handlers.NewChatHandler(logger, conv),
		CookieSecure: cfg.CookieSecure,
	})

	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		limiter: limiter,
		handler: handler,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.PlannerTimeout*2 + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", slog.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errC
}

// Close releases the rate limiter and the database.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.store.Close()
}

// Store exposes storage for administrative commands.
func (s *Server) Store() *sqldb.Storage {
	return s.store
}
