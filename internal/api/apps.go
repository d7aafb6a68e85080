package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/appforge/internal/apps"
)

type createAppRequest struct {
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

// createApp snapshots a completed session into a saved app. Generated files
// are secret-scanned first; findings become warnings on the app.
func (s *Server) createApp(c echo.Context) error {
	var req createAppRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid app payload")
	}
	if req.SessionID == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId and name are required")
	}

	ctx := c.Request().Context()
	uid := userID(c)

	session, err := s.deps.Store.Get(ctx, req.SessionID, uid)
	if err != nil {
		return httpError(err)
	}

	warnings := s.deps.Scanner.Scan(session.Files)

	app, err := s.deps.Apps.CreateFromSession(ctx, uid, session, req.Name, req.Description,
		apps.Visibility(req.Visibility), warnings)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, app)
}

func (s *Server) listApps(c echo.Context) error {
	list, err := s.deps.Apps.List(c.Request().Context(), userID(c), 0)
	if err != nil {
		return httpError(err)
	}
	if list == nil {
		list = []*apps.App{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getApp(c echo.Context) error {
	app, err := s.deps.Apps.Get(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, app)
}

func (s *Server) starApp(c echo.Context) error {
	app, err := s.deps.Apps.Star(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, app)
}

func (s *Server) favoriteApp(c echo.Context) error {
	app, err := s.deps.Apps.Favorite(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, app)
}

func (s *Server) forkApp(c echo.Context) error {
	fork, err := s.deps.Apps.Fork(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, fork)
}

func (s *Server) exportApp(c echo.Context) error {
	ctx := c.Request().Context()
	app, err := s.deps.Apps.Get(ctx, c.Param("id"), userID(c))
	if err != nil {
		return httpError(err)
	}

	result, err := s.deps.Exporter.Export(ctx, app)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) deleteApp(c echo.Context) error {
	if err := s.deps.Apps.Delete(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
