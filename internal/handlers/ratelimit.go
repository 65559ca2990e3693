package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware enforces a per-source-system request budget ahead of
// the ingestion core. Each configured source gets its own token bucket;
// every unconfigured caller shares one bucket, which keeps the limiter map
// bounded no matter what arrives in the x-source-system header.
func RateLimitMiddleware(sources []string, limit int, window time.Duration) gin.HandlerFunc {
	perWindow := rate.Every(window / time.Duration(limit))

	limiters := make(map[string]*rate.Limiter, len(sources)+1)
	for _, s := range sources {
		limiters[s] = rate.NewLimiter(perWindow, limit)
	}
	unknown := rate.NewLimiter(perWindow, limit)

	return func(c *gin.Context) {
		l, ok := limiters[c.GetHeader("x-source-system")]
		if !ok {
			l = unknown
		}
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
