// Package http provides the gav HTTP control surface.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/loop"
	"github.com/fyrsmithlabs/gav/internal/orchestrator"
	"github.com/fyrsmithlabs/gav/internal/secrets"
)

// Runtime is the session the server exposes.
type Runtime interface {
	SessionID() string
	Gather() *loop.GatherPhase
	Verify() *loop.VerifyPhase
	Guard() *loop.GuardPhase
	Scrubber() secrets.Scrubber
}

// Server provides HTTP endpoints for a gav session.
type Server struct {
	echo    *echo.Echo
	runtime Runtime
	logger  *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit is requests per second per client on /api; 0 disables limiting.
	RateLimit float64
	RateBurst int

	Version string
	// Meter receives HTTP metrics; nil uses the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(rt Runtime, logger *logging.Logger, cfg *Config) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())

	s := &Server{
		echo:    e,
		runtime: rt,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	if s.config.RateLimit > 0 {
		v1.Use(newClientLimiter(s.config.RateLimit, s.config.RateBurst).middleware())
	}
	v1.GET("/cache/stats", s.handleCacheStats)
	v1.DELETE("/cache", s.handleCacheClear)
	v1.POST("/gather", s.handleGather)
	v1.POST("/verify", s.handleVerify)
	v1.POST("/guard", s.handleGuard)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		SessionID: s.runtime.SessionID(),
		Version:   s.config.Version,
	})
}

func (s *Server) handleCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.runtime.Gather().CacheStats())
}

func (s *Server) handleCacheClear(c echo.Context) error {
	s.runtime.Gather().ClearCache()
	s.logger.Info(c.Request().Context(), "context cache cleared")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGather(c echo.Context) error {
	var req orchestrator.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid gather request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bundle, err := s.runtime.Gather().TryGather(c.Request().Context(), req).Get()
	if err != nil {
		s.logger.Error(c.Request().Context(), "gather failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, s.scrub(err.Error()))
	}
	return c.JSON(http.StatusOK, GatherResponse{
		Bundle:   bundle,
		Degraded: orchestrator.IsDegraded(bundle),
	})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid verify request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Call.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call.name is required")
	}
	ctx := s.callContext(c, &req.Call)

	out := s.runtime.Verify().TryVerify(ctx, req.Call, req.Result)
	return s.verdict(c, req.Call, out)
}

func (s *Server) handleGuard(c echo.Context) error {
	var req GuardRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid guard request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Call.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call.name is required")
	}
	ctx := s.callContext(c, &req.Call)

	out := s.runtime.Guard().TryCheck(ctx, req.Call)
	return s.verdict(c, req.Call, out)
}

// callContext assigns a call ID when the client sent none.
func (s *Server) callContext(c echo.Context, call *loop.ToolCall) context.Context {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	return logging.WithCallID(c.Request().Context(), call.ID)
}

func (s *Server) verdict(c echo.Context, call loop.ToolCall, out loop.Outcome[loop.Verdict]) error {
	switch {
	case out.OK():
		return c.JSON(http.StatusOK, VerifyResponse{
			Verified: true,
			Passed:   out.Value.Passed,
			Feedback: out.Value.Feedback,
		})
	case errors.Is(out.Err, loop.ErrNotVerified):
		return c.JSON(http.StatusOK, VerifyResponse{Error: out.Err.Error()})
	default:
		s.logger.Error(c.Request().Context(), "verification infrastructure failure",
			zap.String("tool", call.Name), zap.String("call_id", call.ID), zap.Error(out.Err))
		return c.JSON(http.StatusInternalServerError, VerifyResponse{Error: s.scrub(out.Err.Error())})
	}
}

func (s *Server) scrub(msg string) string {
	if sc := s.runtime.Scrubber(); sc != nil {
		return sc.Scrub(msg).Scrubbed
	}
	return msg
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
