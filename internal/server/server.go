// Package server provides the HTTP API for trendd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/bus"
	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/gateway"
	"github.com/fyrsmithlabs/trendd/internal/history"
	"github.com/fyrsmithlabs/trendd/internal/logging"
	"github.com/fyrsmithlabs/trendd/internal/orchestrator"
)

// Server exposes the orchestrator, the delegation bus, and the stores over
// HTTP.
type Server struct {
	echo         *echo.Echo
	orchestrator *orchestrator.Orchestrator
	bus          *bus.Bus
	gateway      *gateway.Gateway
	history      *history.Store
	logger       *logging.Logger
	config       *config.ServerConfig
}

// New creates the HTTP server and registers all routes.
func New(o *orchestrator.Orchestrator, b *bus.Bus, gw *gateway.Gateway, hist *history.Store, logger *logging.Logger, cfg *config.ServerConfig) (*Server, error) {
	if o == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if b == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &config.ServerConfig{Host: "localhost", Port: 8080, ShutdownTimeout: 10 * time.Second}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext(logger))

	s := &Server{
		echo:         e,
		orchestrator: o,
		bus:          b,
		gateway:      gw,
		history:      hist,
		logger:       logger.Named("http"),
		config:       cfg,
	}

	s.registerRoutes()

	return s, nil
}

// requestContext puts the request id into the request context and logs one
// line per request.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/assistant", s.handleAssistant)
	v1.GET("/history", s.handleHistory)
	v1.GET("/history/:id", s.handleHistoryEntry)
	v1.GET("/agents/status", s.handleAgentStatus)

	a2a := s.echo.Group("/a2a")
	a2a.POST("/send", s.handleSend)
	a2a.POST("/agents/:name", s.handleAgentSend)
}

// AssistantRequest is the request body for POST /api/v1/assistant.
type AssistantRequest struct {
	Query        string `json:"query"`
	Limit        int    `json:"limit,omitempty"`
	IncludeHN    *bool  `json:"include_hn,omitempty"`
	IncludeBrave *bool  `json:"include_brave,omitempty"`
}

// SendRequest is the request body for POST /a2a/send.
type SendRequest struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Type      string          `json:"type"`
	Payload   bus.TaskPayload `json:"payload"`
}

// SendResponse is the response body for the a2a endpoints.
type SendResponse struct {
	Route     string         `json:"route"`
	Data      map[string]any `json:"data"`
	Degraded  bool           `json:"degraded"`
	Timestamp time.Time      `json:"timestamp"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Providers map[string]bool `json:"providers,omitempty"`
}

// AgentStatusResponse is the response body for GET /api/v1/agents/status.
type AgentStatusResponse struct {
	Agents    []string        `json:"agents"`
	Providers map[string]bool `json:"providers,omitempty"`
}

// handleAssistant runs one submission through the orchestrator.
func (s *Server) handleAssistant(c echo.Context) error {
	var req AssistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	resp, err := s.orchestrator.Handle(c.Request().Context(), orchestrator.Submission{
		Query:        req.Query,
		Limit:        req.Limit,
		IncludeHN:    req.IncludeHN,
		IncludeBrave: req.IncludeBrave,
	})
	if err != nil {
		s.logger.Error(c.Request().Context(), "assistant request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}

// handleSend delivers one delegation message directly on the bus.
func (s *Server) handleSend(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient field is required")
	}
	if req.Sender == "" {
		req.Sender = "external"
	}

	return s.send(c, req.Sender, req.Recipient, req.Type, req.Payload)
}

// handleAgentSend addresses one registered agent by path.
func (s *Server) handleAgentSend(c echo.Context) error {
	var payload bus.TaskPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.send(c, "external", c.Param("name"), "task", payload)
}

func (s *Server) send(c echo.Context, sender, recipient, messageType string, payload bus.TaskPayload) error {
	result, err := s.bus.Send(c.Request().Context(), sender, recipient, messageType, payload)
	if err != nil {
		// An unknown recipient is a configuration error, not a missing
		// resource, so it surfaces as a server-side failure.
		s.logger.Error(c.Request().Context(), "a2a send failed",
			zap.String("recipient", recipient),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, SendResponse{
		Route:     result.Route,
		Data:      result.Data,
		Degraded:  result.Degraded,
		Timestamp: time.Now().UTC(),
	})
}

// handleHistory lists recent history entries, newest first.
func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusOK, []history.Entry{})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	return c.JSON(http.StatusOK, s.history.Recent(limit))
}

// handleHistoryEntry returns one history entry by id.
func (s *Server) handleHistoryEntry(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}

	entry, ok := s.history.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "history entry not found")
	}
	return c.JSON(http.StatusOK, entry)
}

// handleAgentStatus reports registered agents and provider reachability.
func (s *Server) handleAgentStatus(c echo.Context) error {
	resp := AgentStatusResponse{Agents: s.bus.Agents()}
	if s.gateway != nil {
		resp.Providers = s.gateway.Health(c.Request().Context())
	}
	return c.JSON(http.StatusOK, resp)
}

// handleHealth reports daemon liveness and provider reachability.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.gateway != nil {
		resp.Providers = s.gateway.Health(c.Request().Context())
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the routing handler. Intended for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
