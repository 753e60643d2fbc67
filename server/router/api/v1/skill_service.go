package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/skillgate/plugin/ai/router"
	"github.com/hrygo/skillgate/plugin/ai/skill"
)

// RouteResponse is the routing decision for a query.
type RouteResponse struct {
	Query       string       `json:"query"`
	Match       *skill.Match `json:"match"`
	Explanation string       `json:"explanation"`
}

// ListSkills describes every registered skill.
// GET /api/v1/skills
func (s *APIV1Service) ListSkills(c echo.Context) error {
	skills := s.Agent.ListSkills()
	if skills == nil {
		skills = []router.Info{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"skills": skills,
	})
}

// Route shows which skill a query would use without calling the model.
// GET /api/v1/route?q=
func (s *APIV1Service) Route(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return badRequest(c, "query parameter q is required")
	}
	return c.JSON(http.StatusOK, RouteResponse{
		Query:       query,
		Match:       s.Agent.Route(query),
		Explanation: s.Agent.ExplainRouting(query),
	})
}
