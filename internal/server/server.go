package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hongminglow/wallet-auth/internal/auth"
	"github.com/hongminglow/wallet-auth/internal/config"
	"github.com/hongminglow/wallet-auth/internal/http/handlers"
	"github.com/hongminglow/wallet-auth/internal/middleware"
	"github.com/hongminglow/wallet-auth/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server. When store
// also implements handlers.Pinger, /health reports database reachability.
func New(cfg config.Config, store storage.UserStore, logger *slog.Logger) *Server {
	return &Server{inner: &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Handler(cfg, store, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Handler builds the routed and wrapped handler without binding a listener.
func Handler(cfg config.Config, store storage.UserStore, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	pinger, _ := store.(handlers.Pinger)
	handlers.NewHealthHandler(time.Now(), pinger).Register(mux)

	tokens := auth.NewTokenManager(cfg.AuthSecret, cfg.AuthIssuer, cfg.SessionTTL)
	provider := auth.NewProvider(store, logger)
	handlers.NewAuthHandler(provider, tokens, logger, !cfg.IsDevelopment()).Register(mux)
	handlers.NewUsersHandler(store, tokens, logger).Register(mux)

	mux.Handle("/metrics", promhttp.Handler())

	return middleware.CORS(cfg.CORSOrigins, middleware.Logging(logger, mux))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
