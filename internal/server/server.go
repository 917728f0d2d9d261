// Package server exposes a small admin surface over the host: health,
// registry introspection, and one-shot script execution.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/scripthost/internal/config"
	"github.com/nfrund/scripthost/internal/host"
	"github.com/nfrund/scripthost/internal/lang"
)

// Server holds the dependencies for the admin HTTP server.
type Server struct {
	E        *echo.Echo
	Engine   *host.Engine
	Cfg      config.Provider
	validate *validator.Validate
}

// New creates a new Server instance around an already-built engine.
func New(engine *host.Engine, cfg config.Provider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		E:        e,
		Engine:   engine,
		Cfg:      cfg,
		validate: validator.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.E.GET("/healthz", s.handleHealth)
	api := s.E.Group("/api")
	api.GET("/modules", s.handleModules)
	api.GET("/languages", s.handleLanguages)
	api.GET("/contexts", s.handleContexts)
	api.POST("/execute", s.handleExecute)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"engine": s.Engine.ID(),
	})
}

func (s *Server) handleModules(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"modules": s.Engine.Modules().Names(),
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	ids := s.Engine.Languages()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, string(id))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"languages": names,
		"default":   string(s.Engine.Config().DefaultLanguage),
	})
}

func (s *Server) handleContexts(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"contexts": s.Engine.ContextIDs(),
	})
}

// ExecuteRequest is a one-shot script execution request.
type ExecuteRequest struct {
	Language string `json:"language"`
	Source   string `json:"source" validate:"required"`
}

// ExecuteResponse carries the execution result or error diagnostic.
type ExecuteResponse struct {
	ContextID string `json:"context_id"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleExecute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sandbox, err := s.Engine.AcquireContext(c.Request().Context())
	if err != nil {
		slog.Error("Failed to acquire context", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	defer sandbox.Dispose()

	result, err := sandbox.Evaluate(c.Request().Context(), lang.ID(req.Language), req.Source)
	resp := ExecuteResponse{ContextID: sandbox.ID(), Result: result}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Start begins serving on the configured address and blocks.
func (s *Server) Start() error {
	addr := s.Cfg.GetServerAddr()
	slog.Info("Starting admin server", "addr", addr)
	return s.E.Start(addr)
}
