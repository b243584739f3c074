package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readyTimeout = 3 * time.Second

// GET /health
func (s *server) health(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"status": "ok"})
}

// ready pings every dependency and returns 503 if any is down.
// GET /ready
func (s *server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	c.JSON(status, envelope{
		Success:   status == http.StatusOK,
		Data:      results,
		Timestamp: now(),
	})
}
