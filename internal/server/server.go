// Package server hosts the draw2ui HTTP endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultRequestTimeout bounds request handling. It covers a full
// generation, which may fall back through several models.
const DefaultRequestTimeout = 3 * time.Minute

// LocalOrigins are the browser origins allowed unless AllowAll is set.
var LocalOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS origins (dev mode)
	RequestTimeout time.Duration
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the local draw2ui server.
type Server struct {
	cfg        Config
	health     Pinger
	router     chi.Router
	api        chi.Router
	httpServer *http.Server
}

// New creates a server. health, if non-nil, is checked by /healthz.
func New(cfg Config, health Pinger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	s := &Server{cfg: cfg, health: health}
	s.router = s.buildRouter()
	s.api = s.router.With(middleware.Timeout(cfg.RequestTimeout))
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   LocalOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.health != nil {
			if err := s.health.Ping(r.Context()); err != nil {
				log.Printf("server: health check: %v", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

// CheckOrigin reports whether a WebSocket handshake comes from an allowed
// browser origin, applying the same rules as CORS. Requests without an
// Origin header are not from a browser page and are allowed.
func (s *Server) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.AllowAll {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}

// Router returns the router for request/response endpoints. Handlers
// registered here run under the request timeout.
func (s *Server) Router() chi.Router { return s.api }

// StreamRouter returns the router for long-lived connections such as
// WebSockets, which must not be cut off by the request timeout.
func (s *Server) StreamRouter() chi.Router { return s.router }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("draw2ui server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
