package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

const serviceName = "cart-service"

var startTime = time.Now()

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Ready handles GET /ready. Every registered dependency is pinged.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", logging.Fields{
				"check": name,
				"error": err.Error(),
			})
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": serviceName,
		"checks":  checks,
	})
}

// Live handles GET /live
func (h *Handlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Version handles GET /version
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    "1.0.0",
		"service":    serviceName,
		"go_version": runtime.Version(),
		"started_at": startTime.Format(time.RFC3339),
	})
}
