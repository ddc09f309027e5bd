package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRequestTrackingRecordsRoute(t *testing.T) {
	prom := metrics.NewPrometheusMetrics()
	router := gin.New()
	router.Use(RequestTracking(metrics.NewRecorder(nil, nil, prom)))
	router.GET("/pages/:id", func(c *gin.Context) {
		assert.NotEmpty(t, c.GetString("request_id"))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pages/123", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	expected := `
# HELP flipbook_api_requests_total API requests by route and status code.
# TYPE flipbook_api_requests_total counter
flipbook_api_requests_total{method="GET",route="/pages/:id",status="200"} 1
flipbook_api_requests_total{method="GET",route="unmatched",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(prom.Gatherer(), strings.NewReader(expected), "flipbook_api_requests_total"))
}

func TestRecoverWithSentry(t *testing.T) {
	prom := metrics.NewPrometheusMetrics()
	recorder := metrics.NewRecorder(nil, nil, prom)
	router := gin.New()
	router.Use(RecoverWithSentry(recorder), RequestTracking(recorder), NoAuth())
	router.GET("/pages/:id", func(*gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pages/123", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
	assert.Equal(t, w.Header().Get("X-Request-ID"), gjsonRequestID(t, w.Body.String()))

	expected := `
# HELP flipbook_api_requests_total API requests by route and status code.
# TYPE flipbook_api_requests_total counter
flipbook_api_requests_total{method="GET",route="/pages/:id",status="500"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(prom.Gatherer(), strings.NewReader(expected), "flipbook_api_requests_total"))
}

func TestPanicFields(t *testing.T) {
	tests := []struct {
		name      string
		auth      bool
		target    string
		wantRoute string
		wantUser  interface{}
	}{
		{"matched route with user", true, "/pages/42", "/pages/:id", anonymousUserID},
		{"before auth", false, "/pages/42", "/pages/:id", nil},
		{"unmatched", true, "/nowhere", "unmatched", anonymousUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got logger.Fields
			router := gin.New()
			if tt.auth {
				router.Use(NoAuth())
			}
			router.Use(func(c *gin.Context) {
				c.Next()
				got = panicFields(c)
			})
			router.GET("/pages/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.NotNil(t, got)
			assert.Equal(t, tt.wantRoute, got["route"])
			assert.Equal(t, tt.target, got["path"])
			assert.Equal(t, tt.wantUser, got["user_id"])
		})
	}
}

func gjsonRequestID(t *testing.T, body string) string {
	t.Helper()
	id := gjson.Get(body, "request_id")
	require.True(t, id.Exists())
	return id.String()
}
