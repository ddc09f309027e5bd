package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingJWTSecret is returned when AUTH_MODE=jwt has no JWT_SECRET to verify tokens with
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required when AUTH_MODE=jwt")

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Database (pages and generation logs)
	DatabaseURL string

	// Generation service settings
	Generation GenerationConfig

	// Image rendering
	GeminiAPIKey    string // Google Gemini API key
	ImageModel      string
	ImageRatePerMin int

	// Sessions
	SessionIdleTimeout time.Duration

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "gateway": Trust X-User-* headers from an upstream gateway
	// - "jwt": Verify HS256 bearer tokens signed with JWTSecret
	AuthMode  string
	JWTSecret string
}

// GenerationConfig holds the typed settings of the storyboard generation service
type GenerationConfig struct {
	Endpoint       string        `envconfig:"GENERATION_ENDPOINT" default:"https://api.anthropic.com/v1/responses"`
	Model          string        `envconfig:"GENERATION_MODEL" default:"claude-haiku-4-5"`
	Temperature    float64       `envconfig:"GENERATION_TEMPERATURE" default:"0.3"`
	MaxTokens      int           `envconfig:"GENERATION_MAX_TOKENS" default:"3000"`
	Timeout        time.Duration `envconfig:"GENERATION_TIMEOUT" default:"120s"`
	AttachmentPath string        `envconfig:"GENERATION_ATTACHMENT_PATH" default:"/mnt/data/Hack FLUX_ Beyond One - API and Prompting Guide.html"`
	Strict         bool          `envconfig:"GENERATION_STRICT" default:"false"`
	// Secret, read without a GENERATION_ prefix
	APIKey string `ignored:"true"`
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	var gen GenerationConfig
	if err := envconfig.Process("", &gen); err != nil {
		return nil, fmt.Errorf("failed to load generation config: %w", err)
	}
	gen.APIKey = getEnv("ANTHROPIC_API_KEY", "")

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Generation:         gen,
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		ImageModel:         getEnv("IMAGE_MODEL", "imagen-3.0-generate-002"),
		ImageRatePerMin:    getEnvInt("IMAGE_RATE_PER_MINUTE", 10),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:  getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:  getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:       getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:    getEnv("LANGFUSE_ENABLED", "false") == "true",
		AuthMode:           getEnv("AUTH_MODE", "none"), // Default to no auth for self-hosted
		JWTSecret:          getEnv("JWT_SECRET", ""),
	}

	if cfg.IsJWTMode() && cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// IsGatewayMode returns true if running behind an authenticating gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == "gateway"
}

// IsJWTMode returns true if bearer tokens are verified by this service
func (c *Config) IsJWTMode() bool {
	return c.AuthMode == "jwt"
}

// IsProduction returns true in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
