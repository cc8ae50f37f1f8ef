// Package server hosts the management HTTP surface: liveness, readiness,
// Prometheus metrics and a small read/control API over the coordination
// layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltlock/voltlock/pkg/cache"
	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/device"
	"github.com/voltlock/voltlock/pkg/health"
	"github.com/voltlock/voltlock/pkg/observability/logger"
	"github.com/voltlock/voltlock/pkg/observability/metrics"
)

const shutdownTimeout = 30 * time.Second

// Dependencies carries the collaborators the management server exposes.
type Dependencies struct {
	Readings cache.Repository
	History  *cache.HistoryStack
	Commands *device.Worker
	Health   *health.Registry
	Metrics  *metrics.Registry
}

// ManagementServer serves the operational endpoints on a dedicated port,
// kept separate from whatever traffic the inverter transport carries.
type ManagementServer struct {
	config     config.ManagementConfig
	deps       Dependencies
	logger     logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// NewManagementServer creates a management server and registers its routes.
//
// Cosa fa: espone /health, /ready, /metrics e la superficie /v1 (lettura
// corrente, storico, invio comandi) su un unico engine gin.
// Cosa NON fa: non avvia il listener; chiamare Start per questo.
// Esempio minimo:
//
//	srv, err := server.NewManagementServer(cfg.Management, server.Dependencies{...}, log)
//	if err != nil { ... }
//	go srv.Start(ctx)
func NewManagementServer(cfg config.ManagementConfig, deps Dependencies, log logger.Logger) (*ManagementServer, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Readings == nil || deps.Health == nil || deps.Metrics == nil {
		return nil, errors.New("readings repository, health registry and metrics registry are required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &ManagementServer{
		config: cfg,
		deps:   deps,
		logger: log,
		engine: engine,
	}
	s.registerRoutes()

	return s, nil
}

func (s *ManagementServer) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/reading", s.handleReading)
	v1.GET("/history", s.handleHistory)
	v1.POST("/commands", s.handleCommand)
}

// Handler exposes the route tree, primarily for tests.
func (s *ManagementServer) Handler() http.Handler {
	return s.engine
}

// handleHealth is the liveness probe. It answers 200 as long as the
// process can serve HTTP at all.
func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady runs every registered health checker. A single unhealthy
// backend flips the response to 503 so orchestrators stop routing here.
func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.deps.Health.Check(c.Request.Context())

	code := http.StatusOK
	if result.Status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, result)
}

// handleReading returns the most recent cached inverter reading as stored,
// without re-polling the device.
func (s *ManagementServer) handleReading(c *gin.Context) {
	payload, found, err := s.deps.Readings.Get(c.Request.Context(), cache.KeyLatestReading)
	if err != nil {
		s.logger.Error("reading lookup failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache backend unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading cached yet"})
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// handleHistory returns the bounded stack of recent readings, newest first.
func (s *ManagementServer) handleHistory(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history not enabled"})
		return
	}

	entries, err := s.deps.History.List(c.Request.Context())
	if err != nil {
		s.logger.Error("history lookup failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache backend unavailable"})
		return
	}

	readings := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		readings = append(readings, json.RawMessage(entry))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}

// handleCommand enqueues a control command. Execution is asynchronous;
// a 202 only means the command was accepted for processing.
func (s *ManagementServer) handleCommand(c *gin.Context) {
	if s.deps.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command execution not enabled"})
		return
	}

	var cmd device.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed command body"})
		return
	}

	err := s.deps.Commands.Submit(c.Request.Context(), cmd)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "type": cmd.Type})
	case errors.Is(err, device.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, device.ErrCommandInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, device.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, device.ErrNotRunning):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command worker is not running"})
	default:
		s.logger.Error("command submission failed", "type", cmd.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "command submission failed"})
	}
}

// Start begins listening for requests and blocks until the context is
// cancelled or the listener fails. On cancellation it shuts down
// gracefully, waiting for in-flight requests.
func (s *ManagementServer) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting management server", "port", s.config.Port)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("management server failed to start: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the listener, letting in-flight requests finish within
// a bounded window.
func (s *ManagementServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down management server", "port", s.config.Port)

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("management server shutdown failed: %w", err)
	}
	return nil
}
