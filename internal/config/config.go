package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET" default:"evidentry-artifacts"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`

	// S3DownloadExpiry bounds how long presigned artifact download URLs
	// stay valid.
	S3DownloadExpiry time.Duration `envconfig:"S3_DOWNLOAD_EXPIRY" default:"1h"`

	// SigningKeys is a comma-separated keyID=secret list. Empty disables
	// artifact signing; artifacts are then stored hash-only.
	SigningKeys      string `envconfig:"SIGNING_KEYS"`
	SigningActiveKey string `envconfig:"SIGNING_ACTIVE_KEY"`

	// OperatorKey guards elevated routes. Empty disables them entirely.
	OperatorKey string `envconfig:"OPERATOR_KEY"`

	// RetentionSweepInterval enables the background enforcement worker when
	// set to a positive duration (e.g. "1h"). Zero leaves enforcement to the
	// HTTP route only.
	RetentionSweepInterval time.Duration `envconfig:"RETENTION_SWEEP_INTERVAL" default:"0"`
	RetentionSweepDryRun   bool          `envconfig:"RETENTION_SWEEP_DRY_RUN" default:"false"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("EVIDENTRY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) SigningEnabled() bool {
	return c.SigningKeys != ""
}
