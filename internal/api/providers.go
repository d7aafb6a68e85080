package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/appforge/internal/aiclient"
)

type providerInfo struct {
	Name         aiclient.Provider `json:"name"`
	DefaultModel string            `json:"defaultModel"`
	Available    bool              `json:"available"`
}

func (s *Server) listProviders(c echo.Context) error {
	available := map[aiclient.Provider]bool{}
	for _, p := range s.deps.Client.AvailableProviders() {
		available[p] = true
	}

	out := []providerInfo{}
	for _, p := range []aiclient.Provider{
		aiclient.ProviderOpenAI, aiclient.ProviderClaude,
		aiclient.ProviderGemini, aiclient.ProviderOllama,
	} {
		out = append(out, providerInfo{
			Name:         p,
			DefaultModel: aiclient.DefaultModel(p),
			Available:    available[p],
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getProviderConfig(c echo.Context) error {
	cfg, err := s.deps.Client.ProviderConfig(aiclient.Provider(c.Param("name")))
	if err != nil {
		return httpError(err)
	}
	// Never echo the credential back out
	return c.JSON(http.StatusOK, map[string]any{
		"model":      cfg.Model,
		"baseUrl":    cfg.BaseURL,
		"configured": true,
	})
}

func (s *Server) testProvider(c echo.Context) error {
	report := s.deps.Client.TestProvider(c.Request().Context(), aiclient.Provider(c.Param("name")))
	return c.JSON(http.StatusOK, report)
}
