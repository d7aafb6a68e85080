package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/appforge/internal/templates"
)

func (s *Server) listTemplates(c echo.Context) error {
	if category := c.QueryParam("category"); category != "" {
		return c.JSON(http.StatusOK, s.deps.Registry.ByCategory(templates.Category(category)))
	}
	if framework := c.QueryParam("framework"); framework != "" {
		return c.JSON(http.StatusOK, s.deps.Registry.ByFramework(framework))
	}
	return c.JSON(http.StatusOK, s.deps.Registry.All())
}

func (s *Server) searchTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Registry.Search(c.QueryParam("q")))
}

func (s *Server) getTemplate(c echo.Context) error {
	tpl, err := s.deps.Registry.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (s *Server) registerTemplate(c echo.Context) error {
	var tpl templates.PromptTemplate
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid template payload")
	}
	if err := s.deps.Registry.Register(tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, tpl)
}
