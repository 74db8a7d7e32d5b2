package middleware

import (
	"net/http"
	"strings"

	"travelapp/internal/domain"

	"github.com/gin-gonic/gin"
)

const adminKey = "admin"

// TokenParser validates a bearer token.
type TokenParser func(token string) (domain.RequestContext, error)

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(parse TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		rc, err := parse(strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}
		if rc.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "admin role required",
				"code":       "forbidden",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(adminKey, rc)
		c.Next()
	}
}

// GetAdmin returns the authenticated admin set by RequireAdmin.
func GetAdmin(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(adminKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := v.(domain.RequestContext)
	return rc, ok
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}
