package api

import (
	"net/http"

	"github.com/Conceptual-Machines/flipbook-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/flipbook-api/internal/api/middleware"
	"github.com/Conceptual-Machines/flipbook-api/internal/config"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the services behind the API. DB, Pages, History and Render may be nil.
type Dependencies struct {
	DB         *gorm.DB
	Sessions   *services.SessionService
	Storyboard *services.StoryboardService
	Pages      *services.PageService
	History    *services.GenerationLogService
	Render     *services.RenderService
	Recorder   *metrics.Recorder
	Prometheus *metrics.PrometheusMetrics
}

func SetupRouter(cfg *config.Config, version string, deps Dependencies) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry(deps.Recorder))

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Recorder))

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoints
	metricsHandler := handlers.NewMetricsHandler(version, cfg.Generation.Model, deps.Sessions)
	router.GET("/api/metrics", metricsHandler.GetMetrics)
	if deps.Prometheus != nil {
		router.GET("/metrics", gin.WrapH(deps.Prometheus.Handler()))
	}

	// API routes v1
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(cfg))
	{
		var history handlers.GenerationHistory
		if deps.History != nil {
			history = deps.History
		}
		storyboardHandler := handlers.NewStoryboardHandler(deps.Storyboard, history)
		v1.POST("/storyboard/generations", storyboardHandler.Generate)
		v1.POST("/storyboard/abort", storyboardHandler.Abort)
		v1.GET("/storyboard/state", storyboardHandler.State)
		v1.GET("/storyboard/history", storyboardHandler.History)

		var pageStore handlers.PageStore
		pages := v1.Group("/pages")
		if deps.Pages != nil {
			pageStore = deps.Pages
		} else {
			pages.Use(unavailable("Page registry requires a database"))
		}
		pageHandler := handlers.NewPageHandler(pageStore)
		pages.GET("", pageHandler.List)
		pages.POST("", pageHandler.Add)
		pages.PUT("/order", pageHandler.Reorder)
		pages.DELETE("/:id", pageHandler.Delete)
		pages.DELETE("", pageHandler.Clear)

		var renderer handlers.FrameRenderer
		if deps.Render != nil {
			renderer = deps.Render
		}
		frameHandler := handlers.NewFrameHandler(renderer)
		v1.POST("/frames/render", frameHandler.Render)
	}

	return router
}

// authMiddleware picks the authentication mode from AUTH_MODE
func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	switch {
	case cfg.IsGatewayMode():
		return apimiddleware.GatewayAuth()
	case cfg.IsJWTMode():
		return apimiddleware.JWTAuth(cfg.JWTSecret)
	default:
		return apimiddleware.NoAuth()
	}
}

func unavailable(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": message})
	}
}
