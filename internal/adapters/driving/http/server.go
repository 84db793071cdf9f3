package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
	"github.com/custodia-labs/annotator-core/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	origins    []string
	validate   *validator.Validate
	logger     *slog.Logger

	// Services
	annotationService driving.AnnotationService
	codebookService   driving.CodebookService
	navigationService driving.NavigationService

	// Infrastructure
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowedOrigins enables CORS for browser clients when not empty
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Dependencies are the services and infrastructure the server calls into.
// DB, Redis, Metrics and Gatherer may be nil.
type Dependencies struct {
	Annotation driving.AnnotationService
	Codebook   driving.CodebookService
	Navigation driving.NavigationService
	TaskQueue  driven.TaskQueue
	DB         Pinger
	Redis      Pinger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		origins:           cfg.AllowedOrigins,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		logger:            logger.With("component", "http"),
		annotationService: deps.Annotation,
		codebookService:   deps.Codebook,
		navigationService: deps.Navigation,
		taskQueue:         deps.TaskQueue,
		db:                deps.DB,
		redisClient:       deps.Redis,
		metrics:           deps.Metrics,
		gatherer:          gatherer,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router wrapped in the server middleware
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewMetricsMiddleware(s.metrics).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	if len(s.origins) > 0 {
		h = NewCORSMiddleware(s.origins).Handler(h)
	}
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	coder := NewCoderMiddleware()

	// Health and operations endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Stateless engine endpoints
	s.router.HandleFunc("POST /api/v1/codebooks/compile", s.handleCompileCodebook)
	s.router.HandleFunc("POST /api/v1/codebooks/branching", s.handleBranching)
	s.router.HandleFunc("POST /api/v1/navigate", s.handleNavigate)

	// Coder sessions
	s.router.Handle("GET /api/v1/jobs/{job}/units/{unit}",
		coder.RequireCoder(http.HandlerFunc(s.handleOpenUnit)))
	s.router.Handle("GET /api/v1/units/{unit}/annotations",
		coder.RequireCoder(http.HandlerFunc(s.handleGetAnnotations)))
	s.router.Handle("POST /api/v1/units/{unit}/annotations/toggle",
		coder.RequireCoder(http.HandlerFunc(s.handleToggle)))
	s.router.Handle("POST /api/v1/units/{unit}/annotations/import",
		coder.RequireCoder(http.HandlerFunc(s.handleImport)))
	s.router.Handle("POST /api/v1/units/{unit}/submit",
		coder.RequireCoder(http.HandlerFunc(s.handleSubmit)))
	s.router.Handle("DELETE /api/v1/units/{unit}/session",
		coder.RequireCoder(http.HandlerFunc(s.handleCloseUnit)))

	// Submission tasks
	s.router.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)
	s.router.HandleFunc("GET /api/v1/queue/stats", s.handleQueueStats)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
