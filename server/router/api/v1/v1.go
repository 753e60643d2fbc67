package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yuin/goldmark"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/plugin/ai/agent"
	servermw "github.com/hrygo/skillgate/server/middleware"
)

// APIV1Service serves the JSON API under /api/v1.
type APIV1Service struct {
	Profile *profile.Profile
	Agent   *agent.Agent

	markdown goldmark.Markdown
	limiter  *servermw.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, a *agent.Agent) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Agent:    a,
		markdown: newMarkdown(),
		limiter:  servermw.NewRateLimiter(profile.APIRequestsPerSecond, profile.APIBurst),
	}
}

// Limiter returns the per-client limiter guarding the chat endpoints.
func (s *APIV1Service) Limiter() *servermw.RateLimiter {
	return s.limiter
}

// RegisterRoutes mounts every endpoint on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")
	g.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	limited := s.limiter.Middleware()
	g.POST("/chat", s.Chat, limited)
	g.POST("/chat/stream", s.ChatStream, limited)

	g.GET("/sessions", s.ListSessions)
	g.GET("/sessions/:id", s.GetSession)
	g.DELETE("/sessions/:id", s.ResetSession)

	g.GET("/skills", s.ListSkills)
	g.GET("/route", s.Route)

	g.GET("/cache/stats", s.GetCacheStats)
	g.DELETE("/cache", s.ClearCache)

	g.GET("/metrics/overview", s.GetMetricsOverview)
	g.GET("/healthz", s.Health)
}

// Health reports liveness.
// GET /api/v1/healthz
func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}
