package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/finalyzer/finalyzer/internal/analyzer"
	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/internal/config"
	"github.com/finalyzer/finalyzer/internal/engine"
	"github.com/finalyzer/finalyzer/internal/home"
	"github.com/finalyzer/finalyzer/internal/queue"
	"github.com/finalyzer/finalyzer/internal/server/endpoints"
	"github.com/finalyzer/finalyzer/internal/store"
	"github.com/finalyzer/finalyzer/internal/svcctx"
)

// Server is the main finalyzer HTTP server. It owns the job store and
// queue, and with the memory queue driver it also runs the analysis
// workers in-process.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	homeDir    *home.Dir
	engines    *engine.Registry
	logger     *slog.Logger

	jobStore *store.Store
	jobQueue queue.Queue

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0)
	Host string
	// Port is the port to listen on (default: 8000)
	Port int
	// Home is the finalyzer home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	// Engine registry with hot reload on config changes
	engines := engine.NewRegistry()
	if err := engines.Reload(engineOptions(cfg.ConfigManager.Get())); err != nil {
		return nil, fmt.Errorf("failed to configure engine: %w", err)
	}
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if err := engines.Reload(engineOptions(c)); err != nil {
			cfg.Logger.Error("engine reload failed", "error", err)
			return
		}
		cfg.Logger.Info("engine registry reloaded from config")
	})

	s := &Server{
		configMgr: cfg.ConfigManager,
		homeDir:   cfg.Home,
		engines:   engines,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  10 * time.Minute, // Sync analysis blocks on the engine
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// engineOptions maps config to engine options, resolving env references
// in the API key.
func engineOptions(c *config.Config) engine.Options {
	return engine.Options{
		Model:           c.Engine.Model,
		APIKey:          config.ResolveEnvVars(c.Engine.APIKey),
		BaseURL:         c.Engine.BaseURL,
		Temperature:     c.Engine.Temperature,
		Timeout:         time.Duration(c.Engine.TimeoutSeconds) * time.Second,
		VerifyMaxTurns:  c.Engine.VerifyMaxTurns,
		AnalyzeMaxTurns: c.Engine.AnalyzeMaxTurns,
	}
}

// Start starts the server. It blocks until the context is cancelled or
// an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	cfg := s.configMgr.Get()

	if err := s.homeDir.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	dbPath := cfg.Storage.DatabasePath
	if dbPath == "" {
		dbPath = s.homeDir.DatabasePath()
	}
	jobStore, err := store.Open(dbPath)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open job store: %w", err)
	}
	s.jobStore = jobStore
	s.logger.Info("job store ready", "path", dbPath)

	jobQueue, err := openQueue(cfg)
	if err != nil {
		jobStore.Close()
		s.setNotRunning()
		return err
	}
	s.jobQueue = jobQueue
	s.logger.Info("job queue ready", "driver", cfg.Queue.Driver)

	processor := analyzer.NewProcessor(analyzer.Config{
		Store:            jobStore,
		Engine:           s.engines,
		MaxDocumentChars: cfg.Engine.MaxDocumentChars,
		Logger:           s.logger,
	})

	s.services = &svcctx.Services{
		Store:     jobStore,
		Queue:     jobQueue,
		Processor: processor,
		Engines:   s.engines,
		ConfigMgr: s.configMgr,
		Home:      s.homeDir,
		Logger:    s.logger,
	}

	// With the memory driver nothing else can drain the queue, so the
	// server embeds its own worker pool.
	poolErrCh := make(chan error, 1)
	if cfg.Queue.Driver != "nats" {
		pool := analyzer.NewPool(analyzer.PoolConfig{
			Queue:      jobQueue,
			Processor:  processor,
			Count:      cfg.Workers.Count,
			JobTimeout: time.Duration(cfg.Workers.JobTimeoutSeconds) * time.Second,
			Logger:     s.logger,
		})
		go func() { poolErrCh <- pool.Run(ctx) }()
	} else {
		close(poolErrCh)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	err = s.shutdown()

	// Let embedded workers finish their in-flight jobs.
	if poolErr := <-poolErrCh; poolErr != nil {
		s.logger.Error("worker pool error", "error", poolErr)
	}
	return err
}

// openQueue builds the configured queue implementation.
func openQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Driver {
	case "nats":
		q, err := queue.ConnectNATS(queue.NATSOptions{
			URL:        cfg.Queue.URL,
			Subject:    cfg.Queue.Subject,
			QueueGroup: cfg.Queue.QueueGroup,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect job queue: %w", err)
		}
		return q, nil
	case "", "memory":
		return queue.NewMemory(cfg.Queue.Buffer), nil
	default:
		return nil, fmt.Errorf("unknown queue driver: %s", cfg.Queue.Driver)
	}
}

// shutdown performs graceful shutdown of the HTTP server, queue and store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.jobQueue != nil {
		if err := s.jobQueue.Close(); err != nil {
			s.logger.Error("queue close error", "error", err)
		}
	}
	if s.jobStore != nil {
		if err := s.jobStore.Close(); err != nil {
			s.logger.Error("job store close error", "error", err)
		}
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

// Engines returns the engine registry.
func (s *Server) Engines() *engine.Registry {
	return s.engines
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or queue aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.jobStore == nil || s.jobQueue == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
