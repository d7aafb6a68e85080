package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/apps"
	"github.com/appforge/internal/export"
	"github.com/appforge/internal/generator"
	"github.com/appforge/internal/planner"
	"github.com/appforge/internal/secscan"
	"github.com/appforge/internal/sessions"
	"github.com/appforge/internal/templates"
)

// SessionStore is the slice of the session store the handlers need.
// Production wires *sessions.Store.
type SessionStore interface {
	Create(ctx context.Context, userID string, request generator.Request) (*sessions.Session, error)
	Get(ctx context.Context, id, userID string) (*sessions.Session, error)
	List(ctx context.Context, userID string, filter sessions.Status, limit, offset int) ([]*sessions.Session, error)
	Delete(ctx context.Context, id, userID string) error
}

// Deps bundles everything the API server needs.
type Deps struct {
	Port         int
	JWTSecret    string
	Registry     *templates.Registry
	Client       *aiclient.Client
	Orchestrator *generator.Orchestrator
	Store        SessionStore
	Hub          *sessions.Hub
	Runner       *sessions.Runner
	Apps         *apps.Store
	Scanner      *secscan.Scanner
	Exporter     *export.GitLabExporter
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	deps Deps
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{echo: e, deps: deps}
	server.setupRoutes()
	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.Use(RequireAuth(s.deps.JWTSecret))

	// Templates
	v1.GET("/templates", s.listTemplates)
	v1.GET("/templates/search", s.searchTemplates)
	v1.GET("/templates/:id", s.getTemplate)
	v1.POST("/templates", s.registerTemplate)

	// Providers
	v1.GET("/providers", s.listProviders)
	v1.GET("/providers/:name", s.getProviderConfig)
	v1.POST("/providers/:name/test", s.testProvider)

	// Generation
	v1.POST("/generate", s.startGeneration)
	v1.POST("/generate/estimate", s.estimateGeneration)
	v1.POST("/blueprint", s.generateBlueprint)

	// Sessions
	v1.GET("/sessions", s.listSessions)
	v1.GET("/sessions/:id", s.getSession)
	v1.GET("/sessions/:id/stream", s.streamSession)
	v1.POST("/sessions/:id/cancel", s.cancelSession)
	v1.DELETE("/sessions/:id", s.deleteSession)

	// Projects
	v1.POST("/projects/plans", s.createProjectPlan)
	v1.POST("/projects/generate", s.startProjectGeneration)

	// Apps
	v1.POST("/apps", s.createApp)
	v1.GET("/apps", s.listApps)
	v1.GET("/apps/:id", s.getApp)
	v1.POST("/apps/:id/star", s.starApp)
	v1.POST("/apps/:id/favorite", s.favoriteApp)
	v1.POST("/apps/:id/fork", s.forkApp)
	v1.POST("/apps/:id/export", s.exportApp)
	v1.DELETE("/apps/:id", s.deleteApp)
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.deps.Port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	var missingVars *generator.MissingVariablesError
	var depErr *planner.PhaseDependencyError
	var provErr *aiclient.ProviderError

	switch {
	case errors.Is(err, templates.ErrNotFound),
		errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, apps.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, sessions.ErrUnauthorized),
		errors.Is(err, apps.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, aiclient.ErrUnsupportedProvider),
		errors.Is(err, planner.ErrPlanNotFound),
		errors.Is(err, apps.ErrSessionNotCompleted),
		errors.As(err, &missingVars),
		errors.As(err, &depErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &provErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, export.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
