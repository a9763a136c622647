package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per session, falling back to the client IP.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	logger   *logging.LoggerV2
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerSecond, burst int, logger *logging.LoggerV2) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Handler returns the gin middleware.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := SessionID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn("Rate limit exceeded", logging.Fields{
				"key":    key,
				"path":   c.FullPath(),
				"method": c.Request.Method,
			})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Cleanup drops limiters idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(interval)
			}
		}
	}()
}
