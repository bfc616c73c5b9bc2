package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Extractor
	ExtractorKind      string `envconfig:"EXTRACTOR" default:"fallback"`
	FaceModelsDir      string `envconfig:"FACE_MODELS_DIR" default:"models"`
	RemoteExtractorURL string `envconfig:"REMOTE_EXTRACTOR_URL" default:"http://localhost:5005"`

	// Verification
	QualityThreshold float64 `envconfig:"QUALITY_THRESHOLD" default:"0.6"`
	MaxFaceDistance  float64 `envconfig:"MAX_FACE_DISTANCE" default:"0.6"`

	// Security
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"facemark"`

	// Self-service marking
	SelfMarkRateLimit  int           `envconfig:"SELF_MARK_RATE_LIMIT" default:"5"`
	SelfMarkRateWindow time.Duration `envconfig:"SELF_MARK_RATE_WINDOW" default:"10m"`

	// Gallery snapshot cache
	GalleryCacheTTL time.Duration `envconfig:"GALLERY_CACHE_TTL" default:"5m"`

	// Webhook delivery
	WebhookPollInterval time.Duration `envconfig:"WEBHOOK_POLL_INTERVAL" default:"5s"`
	WebhookBatchSize    int           `envconfig:"WEBHOOK_BATCH_SIZE" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("QUALITY_THRESHOLD must be in [0,1], got %v", c.QualityThreshold)
	}
	if c.MaxFaceDistance < 0 || c.MaxFaceDistance > 1 {
		return fmt.Errorf("MAX_FACE_DISTANCE must be in [0,1], got %v", c.MaxFaceDistance)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
