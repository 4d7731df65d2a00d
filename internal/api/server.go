package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/covenant/internal/analysis"
	"github.com/opensource-finance/covenant/internal/domain"
	"github.com/opensource-finance/covenant/internal/metrics"
	"github.com/opensource-finance/covenant/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, analyzer *analysis.Analyzer, ruleFile *rules.RuleFile, version string) *Server {
	handler := NewHandler(repo, cache, bus, analyzer, ruleFile, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)                        // CORS for browser clients
	router.Use(RecoverMiddleware)                     // Recover from panics
	router.Use(TracingMiddleware)                     // OpenTelemetry tracing
	router.Use(LoggingMiddleware)                     // Request logging and metrics
	router.Use(middleware.RealIP)                     // Extract real IP
	router.Use(middleware.Compress(5))                // Gzip compression
	router.Use(BodyLimitMiddleware(cfg.MaxBodyBytes)) // Contract text size cap

	// Health and metrics endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes (tenant required)
	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Analysis
		r.Post("/analyze", handler.Analyze)
		r.Post("/segment", handler.Segment)
		r.Post("/documents", handler.SubmitDocument)

		// Retrieval
		r.Get("/analyses/{id}", handler.GetAnalysis)
		r.Get("/documents/{id}", handler.GetDocument)
		r.Get("/audit/{id}", handler.GetAuditSession)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Delete("/rules/{name}", handler.DeleteRule)
		r.Post("/rules/reload", handler.ReloadRules)

		// Contract profiles
		r.Get("/profiles", handler.ListProfiles)
		r.Put("/profiles/{contractType}", handler.PutProfile)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
