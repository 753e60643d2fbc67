package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetCacheStats returns both cache levels' statistics.
// GET /api/v1/cache/stats
func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Agent.CacheStats(c.Request().Context()))
}

// ClearCache empties both cache levels.
// DELETE /api/v1/cache
func (s *APIV1Service) ClearCache(c echo.Context) error {
	s.Agent.ClearCache(c.Request().Context())
	slog.Info("response cache cleared", "remote_ip", c.RealIP())
	return c.NoContent(http.StatusNoContent)
}
