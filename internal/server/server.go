package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"worklog/internal/auth"
	"worklog/internal/lifecycle"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP handlers for the task report backend.
type Server struct {
	engine   *gin.Engine
	tasks    *lifecycle.Manager
	accounts *auth.Service
	health   Pinger
	logger   *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(tasks *lifecycle.Manager, accounts *auth.Service, health Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	router.Use(requestID())

	srv := &Server{
		engine:   router,
		tasks:    tasks,
		accounts: accounts,
		health:   health,
		logger:   logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/login", s.handleLogin)

		secured := api.Group("", s.authenticate())
		{
			secured.POST("/employees", s.handleRegister)

			tasks := secured.Group("/tasks")
			{
				tasks.GET("", s.handleListTasks)
				tasks.POST("", s.handleCreateTask)
				tasks.GET(":id/history", s.handleTaskHistory)
				tasks.POST(":id/approve", s.handleApproveTask)
				tasks.DELETE(":id", s.handleDeleteTask)
			}

			secured.POST("/approve", s.handleLegacyApprove)
			secured.GET("/stats", s.handleStats)
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "endpoint not found"})
	})
}

// handleHealth reports readiness, including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "invalid identifier")
		return 0, false
	}
	return id, true
}
