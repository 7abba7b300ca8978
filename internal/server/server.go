// Package server exposes the local HTTP control surface. Every mutation
// is a thin handler over core; the server holds no mutable state of its
// own beyond the singleton lockfile that keeps two servers off the same
// data directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/lockfile"
)

// Options configure the control server.
type Options struct {
	Host    string
	Port    int
	DataDir string
	Version string
}

// Server is the local control server.
type Server struct {
	core       *core.Core
	logger     *slog.Logger
	opts       Options
	engine     *gin.Engine
	httpServer *http.Server
	lock       *lockfile.Lock
}

// New builds the server and registers all routes. It does not listen yet.
func New(c *core.Core, logger *slog.Logger, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		core:   c,
		logger: logger,
		opts:   opts,
		engine: engine,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the underlying engine, for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/version", s.handleVersion)
		api.GET("/status", s.handleStatus)

		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/:id", s.handleGetSession)
		api.PUT("/sessions/:id", s.handleUpdateSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)

		api.POST("/queues", s.handleCreateQueue)
		api.GET("/queues", s.handleListQueues)
		api.GET("/queues/with-queued", s.handleQueuesWithQueued)
		api.GET("/queues/by-name/:name", s.handleGetQueueByName)
		api.GET("/queues/:id", s.handleGetQueue)
		api.GET("/queues/:id/peek", s.handlePeekQueue)
		api.PUT("/queues/:id", s.handleUpdateQueue)
		api.PUT("/queues/:id/archive", s.handleArchiveQueue)
		api.PUT("/queues/:id/unarchive", s.handleUnarchiveQueue)
		api.DELETE("/queues/:id", s.handleDeleteQueue)

		api.POST("/tasks", s.handleEnqueueTask)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.GET("/tasks/:id/events", s.handleTaskEvents)
		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/claim", s.handleClaimTask)
		api.POST("/tasks/:id/complete", s.handleCompleteTask)
		api.POST("/tasks/:id/fail", s.handleFailTask)
		api.POST("/tasks/:id/requeue", s.handleRequeueTask)
	}
}

// Start acquires the singleton server lock and begins serving. Blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	lockPath := filepath.Join(s.opts.DataDir, "server.lock")
	lock, err := lockfile.Acquire(lockPath)
	if err != nil {
		var held *lockfile.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("another server (pid %d) holds %s", held.PID, held.Path)
		}
		return fmt.Errorf("acquire server lock: %w", err)
	}
	s.lock = lock

	s.logger.Info("control server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.releaseLock()
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests,
// and releases the server lock.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.releaseLock()
	return err
}

func (s *Server) releaseLock() {
	s.lock.Release()
	s.lock = nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": s.opts.Version})
}

// handleStatus reports task counts by status, optionally for one queue.
func (s *Server) handleStatus(c *gin.Context) {
	counts, err := s.core.CountByStatus(c.Query("queue_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	body := gin.H{"counts": counts, "total": counts.Total()}
	if project, err := s.core.Project(); err == nil {
		body["project"] = project
	}
	c.JSON(http.StatusOK, body)
}
