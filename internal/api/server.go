package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campusguard/argus/internal/alerting"
	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/forecast"
	"github.com/campusguard/argus/internal/metrics"
	"github.com/campusguard/argus/internal/predict"
	"github.com/campusguard/argus/internal/resolver"
	"github.com/campusguard/argus/internal/timeline"
)

// Deps are the collaborators served over HTTP. Infrastructure fields other
// than Store may be nil; readiness skips what is absent.
type Deps struct {
	Store      domain.Store
	AlertStore domain.AlertStore
	Bus        domain.EventBus

	Resolver  *resolver.Resolver
	Timelines *timeline.Builder
	Monitor   *predict.Monitor
	Forecasts *forecast.Service
	Alerts    *alerting.Generator

	Metrics *metrics.Collector
	Version string
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	handler := NewHandler(deps)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(MetricsMiddleware(deps.Metrics))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	router.Route("/profiles", func(r chi.Router) {
		r.Get("/", handler.ListProfiles)
		r.Get("/search", handler.SearchProfiles)
		r.Get("/{id}", handler.GetProfile)
	})

	router.Get("/resolve", handler.ResolveExact)
	router.Post("/resolve", handler.Resolve)

	router.Route("/entities/{id}", func(r chi.Router) {
		r.Get("/timeline", handler.Timeline)
		r.Get("/predictions/next-location", handler.NextLocation)
		r.Get("/anomalies", handler.Anomalies)
		r.Get("/inferences", handler.Inferences)
		r.Get("/provenance", handler.Provenance)
		r.Get("/links", handler.Links)
		r.Post("/forecast", handler.Forecast)
	})

	router.Get("/alerts", handler.ListAlerts)
	router.Put("/alerts/{id}", handler.UpdateAlertStatus)

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
