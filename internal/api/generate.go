package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/appforge/internal/aiclient"
	"github.com/appforge/internal/generator"
	"github.com/appforge/internal/planner"
)

// startGeneration creates a pending session and kicks off generation in the
// background. The caller polls or streams the session for progress.
func (s *Server) startGeneration(c echo.Context) error {
	var req generator.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid generation request")
	}

	// Reject bad requests before a session exists
	if _, err := s.deps.Registry.Get(req.TemplateID); err != nil {
		return httpError(err)
	}
	validation, err := s.deps.Registry.Validate(req.TemplateID, req.Variables)
	if err != nil {
		return httpError(err)
	}
	if !validation.Valid {
		return httpError(&generator.MissingVariablesError{
			TemplateID: req.TemplateID,
			Missing:    validation.MissingVariables,
		})
	}

	session, err := s.deps.Store.Create(c.Request().Context(), userID(c), req)
	if err != nil {
		return httpError(err)
	}
	s.deps.Runner.StartCode(session)

	return c.JSON(http.StatusAccepted, map[string]string{
		"sessionId": session.ID,
		"status":    string(session.Status),
	})
}

func (s *Server) estimateGeneration(c echo.Context) error {
	var req generator.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid estimate request")
	}

	estimate, err := s.deps.Orchestrator.EstimateCost(req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, estimate)
}

// generateBlueprint runs synchronously; a blueprint is a single call and the
// client waits for it.
func (s *Server) generateBlueprint(c echo.Context) error {
	var req generator.BlueprintRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint request")
	}

	result, err := s.deps.Orchestrator.GenerateBlueprint(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type projectPlanRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (s *Server) createProjectPlan(c echo.Context) error {
	var req projectPlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan request")
	}

	plan, err := planner.CreateProjectPlan(req.Type, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

type projectGenerateRequest struct {
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Provider  aiclient.Provider `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Variables map[string]string `json:"variables"`
}

func (s *Server) startProjectGeneration(c echo.Context) error {
	var req projectGenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid project request")
	}

	plan, err := planner.CreateProjectPlan(req.Type, req.Name)
	if err != nil {
		return httpError(err)
	}

	session, err := s.deps.Store.Create(c.Request().Context(), userID(c), generator.Request{
		TemplateID: "project:" + req.Type,
		Variables:  req.Variables,
		Provider:   req.Provider,
		Model:      req.Model,
	})
	if err != nil {
		return httpError(err)
	}
	s.deps.Runner.StartProject(session, plan, req.Variables)

	return c.JSON(http.StatusAccepted, map[string]string{
		"sessionId": session.ID,
		"status":    string(session.Status),
		"planType":  plan.Type,
	})
}
