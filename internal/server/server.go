package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cadbridge/cadbridge/internal/config"
	"github.com/cadbridge/cadbridge/internal/docs"
	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/monitoring"
	"github.com/cadbridge/cadbridge/internal/remote"
	"github.com/cadbridge/cadbridge/internal/scripting"
	"github.com/cadbridge/cadbridge/internal/security"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	router  *gin.Engine
	manager *remote.Manager
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, log *logging.Logger) (*Server, error) {
	policy := security.FromEnv(cfg.Security.Mode, cfg.Security.BlockedPaths, cfg.Security.AllowedWritePaths)
	log.Info("security policy loaded", zap.String("policy", policy.Describe()))

	client := remote.NewClient(cfg.Remote.CommandTimeout)
	probeTimeout := cfg.Remote.ProbeTimeout
	manager := remote.NewManager(client, remote.ManagerConfig{
		PortStart:      cfg.Remote.ScanPortStart,
		PortEnd:        cfg.Remote.ScanPortEnd,
		AddOnNamespace: cfg.Remote.AddOnNamespace,
		ProbeTimeout: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, probeTimeout)
		},
	}, log.Named("remote"))

	executor := scripting.NewExecutor(log.Named("scripting"))
	props := remote.NewPropertyCache()
	metrics := monitoring.NewMetrics()

	catalog, err := docs.Load()
	if err != nil {
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log.Named("http")))
	router.Use(corsMiddleware())
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(rateLimit(cfg.RateLimit))
	}

	handlers := NewHandlers(cfg, log, manager, executor, policy, props, catalog, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.GET("/instances", handlers.ListInstances)
	router.POST("/instances/rescan", handlers.RescanInstances)

	router.POST("/execute", handlers.ExecuteScript)

	router.GET("/properties/:port", handlers.ListProperties)
	router.GET("/docs", handlers.SearchDocs)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		cfg:     cfg,
		log:     log,
		router:  router,
		manager: manager,
		metrics: metrics,
	}, nil
}

// Manager exposes the instance manager for startup scanning
func (s *Server) Manager() *remote.Manager {
	return s.manager
}

// Metrics exposes the metrics collector
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run starts the server and blocks until shutdown completes. The
// server stops when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
