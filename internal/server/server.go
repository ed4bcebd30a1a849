// Package server wires the HTTP surface together: it owns the CouchDB
// container lifecycle, the MinIO bucket, and the background machinery
// the plant workflow runs on.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/internal/config"
	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/objstore"
	"github.com/seedlab/sprout/internal/orchestrator"
	"github.com/seedlab/sprout/internal/server/endpoints"
	"github.com/seedlab/sprout/internal/svcctx"
)

// Server is the main sprout HTTP server. When the docstore is managed
// it also starts the CouchDB container on boot and stops it on
// shutdown.
type Server struct {
	httpServer   *http.Server
	couchManager *docstore.DockerManager // nil when unmanaged
	couchClient  *docstore.Client
	objects      objstore.Store
	jobManager   *jobs.Manager
	progress     *jobs.Registry
	supervisor   *jobs.Supervisor
	encodePool   *jobs.EncodePool
	orch         *orchestrator.Orchestrator
	genClient    *genai.Client
	configMgr    *config.Manager
	logger       *slog.Logger

	// services holds all core services for context enrichment. It is
	// set only once initialization has fully succeeded; requireInit
	// gates handlers on it.
	services *svcctx.Services

	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// CouchDataPath is the host path CouchDB persists data under.
	CouchDataPath string
	// ConfigManager provides configuration with hot-reload support.
	ConfigManager *config.Manager
	// Objstore overrides the MinIO store; used by tests.
	Objstore objstore.Store
	// Logger is the structured logger to use.
	Logger *slog.Logger
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

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			cfg.Logger.Info("configuration reloaded; generation and store settings apply on restart")
		})
	}

	s := &Server{
		objects:   cfg.Objstore,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if appCfg.Docstore.Managed {
		manager, err := docstore.NewDockerManager(docstore.DockerConfig{
			ContainerName: appCfg.Docstore.ContainerName,
			Image:         appCfg.Docstore.Image,
			DataPath:      cfg.CouchDataPath,
			HostPort:      appCfg.Docstore.Port,
			Username:      appCfg.Docstore.Username,
			Password:      config.ResolveEnvVars(appCfg.Docstore.Password),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create couchdb manager: %w", err)
		}
		s.couchManager = manager
	}

	s.genClient = genai.New(genai.Config{
		APIKey:             config.ResolveEnvVars(appCfg.GenAI.APIKey),
		BaseURL:            appCfg.GenAI.BaseURL,
		TextModel:          appCfg.GenAI.TextModel,
		ImageModel:         appCfg.GenAI.ImageModel,
		ImageFallbackModel: appCfg.GenAI.ImageFallbackModel,
		ResearchModel:      appCfg.GenAI.ResearchModel,
	}, cfg.Logger)

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{CouchManager: s.couchManager}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: s.withServices(mux),
		// No WriteTimeout: the event stream holds its response open
		// for the lifetime of a run.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start starts the server and its backing stores. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := config.DefaultConfig()
	if s.configMgr != nil {
		appCfg = s.configMgr.Get()
	}

	if s.couchManager != nil {
		if err := s.couchManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing CouchDB container incompatible: %w", err)
		}
		s.logger.Info("starting CouchDB")
		if err := s.couchManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start CouchDB: %w", err)
		}
	}

	couchURL := appCfg.Docstore.URL
	if s.couchManager != nil {
		couchURL = s.couchManager.URL()
	}
	s.couchClient = docstore.NewClient(docstore.ClientConfig{
		URL:      couchURL,
		Username: appCfg.Docstore.Username,
		Password: config.ResolveEnvVars(appCfg.Docstore.Password),
	})

	if err := s.couchClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("CouchDB health check failed: %w", err)
	}
	if err := s.couchClient.EnsureDatabase(ctx, jobs.Database); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to ensure jobs database: %w", err)
	}
	s.logger.Info("CouchDB is ready", "url", couchURL)

	if s.objects == nil {
		store, err := objstore.NewMinioStore(objstore.MinioConfig{
			Endpoint:  appCfg.Objstore.Endpoint,
			AccessKey: config.ResolveEnvVars(appCfg.Objstore.AccessKey),
			SecretKey: config.ResolveEnvVars(appCfg.Objstore.SecretKey),
			UseSSL:    appCfg.Objstore.UseSSL,
			Bucket:    appCfg.Objstore.Bucket,
			Domain:    appCfg.Objstore.Domain,
		})
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to create object store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("failed to ensure artifact bucket: %w", err)
		}
		s.objects = store
	}

	s.jobManager = jobs.NewManager(s.couchClient, s.logger)
	s.progress = jobs.NewRegistry()
	s.supervisor = jobs.NewSupervisor(s.logger)
	s.encodePool = jobs.NewEncodePool(appCfg.Encode.Workers, s.logger)
	s.orch = orchestrator.New(s.jobManager, s.objects, s.genClient, s.progress, s.supervisor, orchestrator.Config{
		PollInterval: appCfg.GenAI.PollInterval,
		PollTimeout:  appCfg.GenAI.PollTimeout,
	}, s.logger)

	s.services = &svcctx.Services{
		Docstore:     s.couchClient,
		Objstore:     s.objects,
		JobManager:   s.jobManager,
		Progress:     s.progress,
		Supervisor:   s.supervisor,
		EncodePool:   s.encodePool,
		Orchestrator: s.orch,
		GenAI:        s.genClient,
		Config:       s.configMgr,
		Logger:       s.logger,
	}

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
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown: the HTTP server first, then the
// in-flight background runs, then the CouchDB container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.supervisor != nil && s.supervisor.Active() > 0 {
		s.logger.Info("waiting for background runs", "active", s.supervisor.Active())
		s.supervisor.Wait()
	}
	if s.encodePool != nil {
		s.encodePool.Close()
	}

	if s.couchManager != nil {
		s.logger.Info("stopping CouchDB")
		if err := s.couchManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("CouchDB stop error", "error", err)
		}
		if err := s.couchManager.Close(); err != nil {
			s.logger.Error("CouchDB manager close error", "error", err)
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

// JobManager returns the job manager. Nil before Start.
func (s *Server) JobManager() *jobs.Manager {
	return s.jobManager
}

// Orchestrator returns the plant workflow orchestrator. Nil before Start.
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
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

// requireInit is middleware that ensures the server is fully
// initialized. Returns 503 Service Unavailable until stores and the
// orchestrator are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
