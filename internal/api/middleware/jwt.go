package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix = "Bearer"
)

// Claims are the token claims this service reads. Tokens are issued elsewhere.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTAuth validates HS256 bearer tokens and uses the subject as the user ID.
// Without a secret every request is refused.
func JWTAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			logger.Error("JWT auth has no secret configured", nil, logger.Fields{"path": c.Request.URL.Path})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication is not configured"})
			c.Abort()
		}
	}

	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == bearerPrefix {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has no subject"})
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set("user_email", claims.Email)

		c.Next()
	}
}
