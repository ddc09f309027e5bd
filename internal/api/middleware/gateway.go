package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// GatewayAuth trusts user info from gateway headers (X-User-ID, X-User-Email, X-User-Role).
// This is used when the API runs behind a gateway that validates credentials.
//
// When AUTH_MODE=gateway, the API trusts these headers unconditionally.
// This should ONLY be used with proper network isolation.
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Missing X-User-ID header from gateway",
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Set("user_email", c.GetHeader("X-User-Email"))
		c.Set("user_role", c.GetHeader("X-User-Role"))

		c.Next()
	}
}

// GetUserID retrieves the authenticated user ID set by any auth mode
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
