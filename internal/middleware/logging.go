package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

// RequestLogger logs one line per request.
func RequestLogger(logger *logging.LoggerV2) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logging.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("Request failed", fields)
		case status >= 400:
			logger.Warn("Request rejected", fields)
		default:
			logger.Info("Request handled", fields)
		}
	}
}
