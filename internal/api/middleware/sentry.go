package middleware

import (
	"net/http"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	httpStatusBadRequest          = http.StatusBadRequest
	httpStatusInternalServerError = http.StatusInternalServerError
	sentryFlushTimeout            = 2 * time.Second
)

// RequestTracking adds request ID and logging to all requests and reports them to recorder
func RequestTracking(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate request ID
		requestID := uuid.New().String()
		c.Set("request_id", requestID)

		// Add to response header
		c.Header("X-Request-ID", requestID)

		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		// Log request completion
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		fields := logger.Fields{
			"request_id":  requestID,
			"duration_ms": duration.Milliseconds(),
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"client_ip":   c.ClientIP(),
		}

		// Log based on status code
		if statusCode >= httpStatusInternalServerError {
			logger.Error("Request failed with server error", nil, fields)
		} else if statusCode >= httpStatusBadRequest {
			logger.Warn("Request failed with client error", fields)
		} else {
			logger.Info("Request completed", fields)
		}

		// Unmatched routes share one label
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.RecordAPIRequest(c.Request.Context(), c.Request.Method, route, statusCode, duration)
	}
}

// SentryMiddleware attaches a Sentry hub to every request. Panics are re-raised for RecoverWithSentry.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         sentryFlushTimeout,
	})
}

// RecoverWithSentry turns a panic into a 500, tags the Sentry event with the route and the
// requesting user, and counts the request since RequestTracking never sees it finish.
func RecoverWithSentry(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			fields := panicFields(c)
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(c.Request)
					scope.SetTag("route", fields["route"].(string))
					scope.SetContext("flipbook", sentry.Context(fields))
					if userID, ok := fields["user_id"].(string); ok {
						scope.SetUser(sentry.User{ID: userID})
					}
					hub.RecoverWithContext(c.Request.Context(), err)
				})
			}

			fields["panic"] = err
			logger.Error("Handler panicked", nil, fields)

			recorder.RecordAPIRequest(c.Request.Context(), c.Request.Method, fields["route"].(string), httpStatusInternalServerError, time.Since(start))
			c.AbortWithStatusJSON(httpStatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": c.GetString("request_id"),
			})
		}()
		c.Next()
	}
}

// panicFields describes the request a panic escaped from. user_id is present only once auth has run.
func panicFields(c *gin.Context) logger.Fields {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	fields := logger.Fields{
		"request_id": c.GetString("request_id"),
		"method":     c.Request.Method,
		"route":      route,
		"path":       c.Request.URL.Path,
	}
	if userID, ok := GetUserID(c); ok {
		fields["user_id"] = userID
	}
	return fields
}
