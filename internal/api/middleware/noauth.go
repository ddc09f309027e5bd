package middleware

import (
	"github.com/gin-gonic/gin"
)

const anonymousUserID = "anonymous"

// NoAuth is a pass-through middleware for when AUTH_MODE=none.
// All requests share the anonymous user, and so share one generation session.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, anonymousUserID)
		c.Next()
	}
}
