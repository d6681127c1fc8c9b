// Package server wires the job registry, event registry, pipeline, and
// cleanup loop behind the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/config"
	"github.com/jackzampolin/foliate/internal/events"
	"github.com/jackzampolin/foliate/internal/home"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/ocr"
	"github.com/jackzampolin/foliate/internal/pipeline"
	"github.com/jackzampolin/foliate/internal/render"
	"github.com/jackzampolin/foliate/internal/server/endpoints"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// Server is the main Foliate HTTP server.
type Server struct {
	httpServer    *http.Server
	jobRegistry   *jobs.Registry
	eventRegistry *events.Registry
	pipeline      *pipeline.Pipeline
	cleaner       *jobs.Cleaner
	configSrc     jobs.ConfigSource
	logger        *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	initialized atomic.Bool

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigSource provides configuration with hot-reload support
	ConfigSource jobs.ConfigSource
	// Home is the application home directory
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
	// DataDir overrides the configured data directory when set
	DataDir string

	// OCRClient and Renderer override the defaults; used by tests to run
	// without a live Ollama or poppler install.
	OCRClient ocr.Client
	Renderer  render.Source
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigSource == nil {
		return nil, errors.New("config source is required")
	}

	current := cfg.ConfigSource.Get()

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = current.Storage.DataDir
	}
	if dataDir == "" && cfg.Home != nil {
		dataDir = cfg.Home.DataPath()
	}
	if dataDir == "" {
		return nil, errors.New("no data directory configured")
	}

	s := &Server{
		jobRegistry:   jobs.NewRegistry(dataDir, cfg.Logger),
		eventRegistry: events.NewRegistry(current.Events.RingBufferSize),
		configSrc:     cfg.ConfigSource,
		logger:        cfg.Logger,
	}

	ocrClient := cfg.OCRClient
	if ocrClient == nil {
		reloadable := &reloadableOCR{}
		reloadable.reload(current, cfg.Logger)

		// Rebuild the client when ocr.* settings change on disk.
		if watcher, ok := cfg.ConfigSource.(interface{ OnChange(func(*config.Config)) }); ok {
			watcher.OnChange(func(c *config.Config) {
				reloadable.reload(c, cfg.Logger)
				cfg.Logger.Info("OCR client reloaded from config", "base_url", c.OCR.BaseURL, "model", c.OCR.Model)
			})
		}
		ocrClient = reloadable
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = render.NewPopplerSource(cfg.Logger)
	}

	s.pipeline = pipeline.New(ocrClient, renderer, cfg.ConfigSource, cfg.Logger)
	s.cleaner = jobs.NewCleaner(s.jobRegistry, s.eventRegistry, cfg.ConfigSource, cfg.Logger)

	s.services = &svcctx.Services{
		Jobs:     s.jobRegistry,
		Events:   s.eventRegistry,
		Pipeline: s.pipeline,
		Config:   cfg.ConfigSource,
		Home:     cfg.Home,
		Logger:   cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: endpoints.GetSwaggerSpecPath()}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Recover job records from previous runs. Jobs that were mid-flight
	// when the process died cannot be resumed; mark them failed so clients
	// see a terminal state instead of a job stuck in processing.
	s.jobRegistry.LoadFromDisk()
	for _, job := range s.jobRegistry.AllJobs() {
		if job.Status.Terminal() || job.Status == jobs.StatusPending {
			continue
		}
		job.Status = jobs.StatusFailed
		job.Error = "interrupted by server restart"
		if err := s.jobRegistry.Save(job); err != nil {
			s.logger.Error("failed to mark interrupted job", "job", job.ID, "error", err)
		} else {
			s.logger.Info("marked interrupted job failed", "job", job.ID)
		}
	}

	s.initialized.Store(true)

	// Cleanup loop runs for the life of the server.
	cleanerCtx, cancelCleaner := context.WithCancel(context.Background())
	defer cancelCleaner()
	go s.cleaner.Run(cleanerCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's root HTTP handler. Used by tests with
// httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Jobs returns the job registry.
func (s *Server) Jobs() *jobs.Registry {
	return s.jobRegistry
}

// Events returns the event emitter registry.
func (s *Server) Events() *events.Registry {
	return s.eventRegistry
}

// MarkInitialized flips the init gate without going through Start. Used by
// tests that serve the handler directly.
func (s *Server) MarkInitialized() {
	s.jobRegistry.LoadFromDisk()
	s.initialized.Store(true)
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), s.services)))
	})
}

// requireInit is middleware that ensures the registry has been loaded.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// reloadableOCR is an ocr.Client whose backing client can be swapped when
// configuration changes, without racing in-flight requests.
type reloadableOCR struct {
	v atomic.Value // ocr.Client
}

func (r *reloadableOCR) reload(c *config.Config, logger *slog.Logger) {
	r.v.Store(ocr.Client(ocr.NewOllamaClient(ocr.OllamaConfig{
		BaseURL: c.OCR.BaseURL,
		Model:   c.OCR.Model,
		Timeout: c.OCRTimeout(),
		Retries: c.OCR.Retries,
		Logger:  logger,
	})))
}

func (r *reloadableOCR) OCR(ctx context.Context, image []byte, prompt string) (string, error) {
	return r.v.Load().(ocr.Client).OCR(ctx, image, prompt)
}
