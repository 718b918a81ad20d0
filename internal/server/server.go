package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/hushh/voicegate/internal/api/v1"
	"github.com/hushh/voicegate/internal/api/ws"
	"github.com/hushh/voicegate/internal/config"
	"github.com/hushh/voicegate/internal/orchestrate"
	"github.com/hushh/voicegate/internal/server/middleware"
	"github.com/hushh/voicegate/internal/store/postgres"
	"github.com/hushh/voicegate/internal/tool"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a Server with all routes wired: the versioned REST surface on
// /api/v1, the session websocket on /v1/session, and an unauthenticated
// health check.
func New(cfg *config.Config, store *postgres.Store, gate *orchestrate.Gate, registry *tool.Registry, hub *ws.Hub) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	perSecond := float64(cfg.Server.RatePerMin) / 60

	// REST surface: bearer-authenticated, per-user rate limited.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RateLimit(context.Background(), perSecond, cfg.Server.RateBurst))

		apiConfig := huma.DefaultConfig("Voicegate API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)

		v1.RegisterConfirmationRoutes(api, store, gate)
		v1.RegisterTurnRoutes(api, store)
		v1.RegisterProfileRoutes(api, store)
		v1.RegisterToolRoutes(api, registry)
	})

	// Session websocket. The auth middleware accepts ?token= here because
	// browsers cannot set headers on websocket upgrades.
	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Get("/session", hub.ServeSession)
		r.Get("/sessions/{sessionID}/mirror", hub.ServeSessionMirror)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
