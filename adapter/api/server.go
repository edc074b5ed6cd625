// Package api provides the studiobook HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP API server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	JWTSecret    string
	CORSOrigins  []string
	Debug        bool
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		CORSOrigins:  []string{"*"},
	}
}

// Handlers are the route handlers the server mounts.
type Handlers struct {
	Reservations *ReservationHandler
	Attendance   *AttendanceHandler
	Health       *HealthHandler
	Metrics      observability.Metrics
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if h.Metrics == nil {
		h.Metrics = observability.NoopMetrics{}
	}
	if h.Health == nil {
		h.Health = NewHealthHandler(nil, "")
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestContext(logger, h.Metrics))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	s := &Server{engine: engine, logger: logger}
	s.registerRoutes(cfg, h)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", HeaderRequestID, HeaderCorrelationID},
		ExposeHeaders: []string{HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes(cfg ServerConfig, h Handlers) {
	s.engine.GET("/health", h.Health.Health)

	authed := s.engine.Group("/", JWTAuth(cfg.JWTSecret, s.logger))
	anyRole := RequireRole(RoleAdmin, RoleStaff, RoleClient)
	staff := RequireRole(RoleAdmin, RoleStaff)

	// Reservations
	if r := h.Reservations; r != nil {
		authed.GET("/reservations", anyRole, r.ListSeries)
		authed.GET("/reservations/:id", anyRole, r.Get)
		authed.POST("/reservations", staff, r.Create)
		authed.PATCH("/reservations/:id", staff, r.Update)
		authed.DELETE("/reservations/:id", staff, r.Cancel)
		authed.POST("/reservations/recurring/preview", anyRole, r.PreviewRecurrence)
		authed.POST("/reservations/recurring", staff, r.CreateRecurring)
		authed.POST("/conflicts/detect", anyRole, r.DetectConflicts)
	}

	// Attendance
	if a := h.Attendance; a != nil {
		authed.POST("/reservations/:id/checkin", staff, a.CheckIn)
		authed.POST("/attendance/batch", staff, a.CheckInBatch)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}
