package middleware

import (
	"net/http"

	"travelapp/internal/metrics"
	"travelapp/internal/ratelimit"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// RateLimit throttles a route per client. Limiter errors let the request
// through.
func RateLimit(limiter ratelimit.Limiter, route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := route + ":" + ratelimit.ClientID(c.Request)
		ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			utils.LogError(GetRequestID(c), "ratelimit", route, err)
			c.Next()
			return
		}
		if !ok {
			metrics.RateLimited.WithLabelValues(route).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests, please try again later",
				"code":       "rate_limited",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
