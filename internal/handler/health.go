package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const appVersion = "1.0.0"

// DependencyCheck reports whether one dependency is reachable.
type DependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	env    string
	checks map[string]DependencyCheck
	now    func() time.Time
}

func NewHealthHandler(env string, checks map[string]DependencyCheck) *HealthHandler {
	return &HealthHandler{env: env, checks: checks, now: time.Now}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Welcome to Luxora Boutique API",
		"version":       appVersion,
		"documentation": "/api/v1/health",
	})
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Luxora API is running",
		"timestamp":   h.now().UTC().Format(time.RFC3339),
		"environment": h.env,
	})
}

// Readyz checks every dependency and fails on the first one that is down.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", name: "unavailable"})
			return
		}
		body[name] = "connected"
	}
	c.JSON(http.StatusOK, body)
}
