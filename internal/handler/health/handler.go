package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kenko/clinic-api/pkg/errors"
)

// Pinger is any dependency readiness depends on: the appointment store, the
// event broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHandler(checks map[string]Pinger) *Handler {
	return &Handler{
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	components := make(map[string]string, len(h.checks))
	status, code := "UP", http.StatusOK
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			// ErrorHandler logs the cause; the body only says DOWN.
			_ = c.Error(errors.Unavailable(name+" unavailable", err))
			components[name] = "DOWN"
			status, code = "DOWN", http.StatusServiceUnavailable
			continue
		}
		components[name] = "UP"
	}

	c.JSON(code, gin.H{"status": status, "components": components})
}
