package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/api"
	"github.com/Conceptual-Machines/flipbook-api/internal/config"
	"github.com/Conceptual-Machines/flipbook-api/internal/database"
	"github.com/Conceptual-Machines/flipbook-api/internal/images"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"github.com/Conceptual-Machines/flipbook-api/internal/observability"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "flipbook-api@" + releaseVersion,         // Use embedded release version
			EnableTracing:    true,                                     // Enable tracing for spans
			TracesSampleRate: 1.0,                                      // 100% sampling for now, adjust based on volume
			EnableLogs:       true,                                     // Enable Sentry Logs feature
			Debug:            cfg.Environment != environmentProduction, // Enable debug in non-prod
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			// Flush on shutdown
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	if cfg.Generation.APIKey == "" {
		log.Println("⚠️  ANTHROPIC_API_KEY not set, generation requests will fail with missing_credential")
	}

	ctx := context.Background()

	// Initialize database (optional: pages and generation history)
	db := connectDatabase(cfg)

	// Metrics
	cloudwatchClient, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
	}
	prometheusMetrics := metrics.NewPrometheusMetrics()
	recorder := metrics.NewRecorder(cloudwatchClient, metrics.NewSentryMetrics(), prometheusMetrics)

	// Langfuse tracing
	langfuse := observability.InitializeLangfuse(ctx, cfg)

	// Services
	sessions := services.NewSessionService(services.PipelineConfig(cfg.Generation), cfg.SessionIdleTimeout)
	deps := api.Dependencies{
		DB:         db,
		Sessions:   sessions,
		Recorder:   recorder,
		Prometheus: prometheusMetrics,
	}

	var pages services.PreviousImageSource
	var logs services.GenerationRecorder
	if db != nil {
		deps.Pages = services.NewPageService(db)
		deps.History = services.NewGenerationLogService(db)
		pages = deps.Pages
		logs = deps.History
	}
	deps.Storyboard = services.NewStoryboardService(sessions, pages, logs, recorder, langfuse, cfg.Generation.Model)

	if cfg.GeminiAPIKey != "" {
		renderer, err := images.NewGeminiRenderer(ctx, cfg.GeminiAPIKey, cfg.ImageModel)
		if err != nil {
			sentry.CaptureException(err)
			log.Printf("⚠️  Frame rendering disabled: %v", err)
		} else {
			deps.Render = services.NewRenderService(renderer, cfg.ImageRatePerMin, recorder)
			log.Printf("🎨 Frame rendering enabled (model: %s)", cfg.ImageModel)
		}
	} else {
		log.Println("⚠️  Frame rendering disabled (GEMINI_API_KEY not set)")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := api.SetupRouter(cfg, GetVersion(), deps)

	log.Printf("🚀 Starting server on port %s (auth mode: %s, model: %s)", cfg.Port, cfg.AuthMode, cfg.Generation.Model)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

// connectDatabase opens and migrates the database, or returns nil when none is configured
func connectDatabase(cfg *config.Config) *gorm.DB {
	db, err := database.Connect(cfg.DatabaseURL)
	if errors.Is(err, database.ErrNoDatabaseURL) {
		log.Println("⚠️  DATABASE_URL not set, page registry and generation history disabled")
		return nil
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to connect to database:", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to run migrations:", err)
	}
	return db
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
