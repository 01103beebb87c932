// Package server wires the bridge facade together: host collaborator
// clients, domain components, the event relay worker, and the gin router
// that is the single externally reachable surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/containeros/appbridge/internal/api/http"
	"github.com/containeros/appbridge/internal/api/middleware"
	"github.com/containeros/appbridge/internal/api/ws"
	"github.com/containeros/appbridge/internal/domain/catalog"
	"github.com/containeros/appbridge/internal/domain/icons"
	"github.com/containeros/appbridge/internal/domain/installer"
	"github.com/containeros/appbridge/internal/domain/relay"
	"github.com/containeros/appbridge/internal/domain/settings"
	"github.com/containeros/appbridge/internal/host"
	"github.com/containeros/appbridge/internal/infrastructure/config"
	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/infrastructure/monitoring"
)

// Server composes the bridge daemon.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	relay  *relay.Relay
	store  *settings.Store
	log    *logging.Logger
	cfg    *config.Config

	cancelRelay context.CancelFunc
}

// NewServer builds the full dependency graph from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("initializing appbridge",
		zap.String("port", cfg.Server.Port),
		zap.String("catalog", cfg.Host.CatalogAddr),
		zap.String("installer", cfg.Host.InstallerAddr),
		zap.String("monitor", cfg.Host.MonitorAddr),
	)

	metrics, registry := monitoring.NewMetrics()

	// Host collaborator clients. These are injected into every component
	// that needs them; no process-wide handles.
	catalogClient := host.NewCatalogClient(cfg.Host.CatalogAddr)
	installerClient := host.NewInstallerClient(cfg.Host.InstallerAddr)
	monitorClient := host.NewMonitorClient(cfg.Host.MonitorAddr)

	catalogAdapter := catalog.NewAdapter(catalogClient, logger)

	iconCache, err := icons.NewCache(cfg.Icons.Dir, catalogClient, logger)
	if err != nil {
		return nil, fmt.Errorf("icon cache: %w", err)
	}
	iconCache.WithMetrics(metrics)

	store, err := settings.NewStore(cfg.Settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}
	settingsProxy := settings.NewProxy(store, logger)
	props := settings.NewProperties()

	installManager := installer.NewManager(
		sessionClient{installerClient}, logger).WithMetrics(metrics)

	hub := ws.NewHub(logger).WithMetrics(metrics)
	eventRelay := relay.New(iconCache, monitorClient, logger, relay.Options{
		QueueSize:      cfg.Relay.QueueSize,
		EnqueueTimeout: time.Duration(cfg.Relay.EnqueueTimeout) * time.Millisecond,
	}).WithMetrics(metrics).WithBroadcaster(hub)

	handlers := apihttp.NewHandlers(
		catalogAdapter, installManager, settingsProxy, props,
		iconCache, eventRelay, monitorClient, logger,
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/properties/:key", handlers.GetProperty)
		v1.PUT("/properties/:key", handlers.SetProperty)

		v1.GET("/apps", handlers.ListApps)
		v1.GET("/apps/:pkg", handlers.GetApp)
		v1.GET("/apps/:pkg/name", handlers.GetAppName)
		v1.POST("/apps/:pkg/launch", handlers.LaunchApp)
		v1.DELETE("/apps/:pkg", handlers.RemoveApp)

		v1.POST("/launch", handlers.ResolveAndLaunch)
		v1.POST("/install", handlers.InstallApp)

		v1.GET("/settings/string/:tier/:key", handlers.SettingsGetString)
		v1.PUT("/settings/string/:tier/:key", handlers.SettingsPutString)
		v1.GET("/settings/int/:tier/:key", handlers.SettingsGetInt)
		v1.PUT("/settings/int/:tier/:key", handlers.SettingsPutInt)

		v1.GET("/events", hub.HandleConnection)
	}

	internal := router.Group("/internal")
	{
		internal.POST("/packages/events", handlers.PackageEvent)
		internal.POST("/users/:id/unlocked", handlers.UserUnlocked)
	}

	return &Server{
		router: router,
		relay:  eventRelay,
		store:  store,
		log:    logger,
		cfg:    cfg,
	}, nil
}

// Run starts the relay worker and serves until the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRelay = cancel
	s.relay.Start(ctx)

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("appbridge listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts everything down in dependency order: stop accepting
// requests, drain the relay worker, then release the settings store.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.cancelRelay != nil {
		s.cancelRelay()
		s.relay.Wait()
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// sessionClient narrows the concrete installer client to the manager's
// interface (Go interfaces are not covariant over method results).
type sessionClient struct {
	*host.InstallerClient
}

func (c sessionClient) CreateSession(ctx context.Context) (installer.Session, error) {
	session, err := c.InstallerClient.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}
