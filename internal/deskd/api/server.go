package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/config"
	"github.com/sorenmh/gendesk/internal/deskd/db"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/sorenmh/gendesk/internal/deskd/storage"
	"github.com/sorenmh/gendesk/internal/deskd/store"
	"github.com/sorenmh/gendesk/internal/deskd/stream"
	"github.com/sorenmh/gendesk/internal/deskd/workflow"
)

const Version = "1.0.0"

type Server struct {
	config   *config.Config
	db       *db.DB
	apps     *store.AppStore
	versions *store.VersionStore
	storage  storage.Storage
	engine   *workflow.Engine
	poller   *stream.Poller
	logger   logrus.FieldLogger
	router   *gin.Engine
}

func NewServer(cfg *config.Config, database *db.DB, st storage.Storage, engine *workflow.Engine, logger logrus.FieldLogger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := models.RegisterValidations(v); err != nil {
			logger.WithError(err).Error("Failed to register validations")
		}
	}

	s := &Server{
		config:   cfg,
		db:       database,
		apps:     store.NewAppStore(database.DB),
		versions: store.NewVersionStore(database.DB),
		storage:  st,
		engine:   engine,
		poller:   stream.NewPoller(cfg.Stream.PollInterval, cfg.Stream.MaxAttempts, logger),
		logger:   logger.WithField("component", "api"),
		router:   gin.New(),
	}

	s.router.Use(s.loggerMiddleware(), gin.Recovery(), corsMiddleware())
	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Health check (no auth)
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	api.Use(s.authMiddleware())
	{
		api.POST("/apps/generate", s.handleGenerate)
		api.GET("/apps", s.handleListApps)
		api.GET("/apps/:id", s.handleGetApp)
		api.PATCH("/apps/:id", s.handleUpdateApp)
		api.DELETE("/apps/:id", s.handleTrashApp)
		api.POST("/apps/:id/restore", s.handleRestoreApp)
		api.DELETE("/apps/:id/permanent", s.handleDeleteApp)
		api.POST("/apps/:id/regenerate", s.handleRegenerate)
		api.GET("/apps/:id/stream", s.handleStream)
		api.GET("/apps/:id/html", s.handleServeHTML)
		api.GET("/apps/:id/versions", s.handleListVersions)
		api.POST("/apps/:id/versions/:version/restore", s.handleRestoreVersion)
		api.DELETE("/trash", s.handleEmptyTrash)
	}
}

// Run serves until ctx is cancelled, then drains requests and in-flight
// generation runs.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.config.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := s.engine.Wait(shutdownCtx); err != nil {
		return fmt.Errorf("generation runs still in flight: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	dbOK := s.db.PingContext(c.Request.Context()) == nil

	status := "healthy"
	if !dbOK {
		status = "degraded"
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:             status,
		Version:            Version,
		DatabaseAccessible: dbOK,
		Storage:            s.storage.Type(),
	})
}
