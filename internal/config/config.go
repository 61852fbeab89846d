// Package config reads server settings from ORGGRAPH_* environment
// variables, an optional .env file, and an optional SSM parameter overlay.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable name.
const Prefix = "ORGGRAPH_"

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"` // empty = in-memory profile store
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":9090"`
	AuthToken   string `env:"AUTH_TOKEN"` // empty = auth disabled
	NATSURL     string `env:"NATS_URL"`   // empty = no events

	DraftDir      string        `env:"DRAFT_DIR"` // empty = in-memory drafts
	DraftTTL      time.Duration `env:"DRAFT_TTL" envDefault:"24h"`
	AutosaveDelay time.Duration `env:"AUTOSAVE_DELAY" envDefault:"1s"`

	CatalogFile string   `env:"CATALOG_FILE"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	SSMPrefix string `env:"SSM_PREFIX"` // e.g. /orggraph/prod
	SSMRegion string `env:"SSM_REGION" envDefault:"us-east-1"`

	Sync SyncConfig `envPrefix:"SYNC_"`
}

type SyncConfig struct {
	Interval   time.Duration `env:"INTERVAL" envDefault:"3m"` // 0 = disabled
	S3Bucket   string        `env:"S3_BUCKET"`                 // enables S3 when set
	S3Key      string        `env:"S3_KEY" envDefault:"orggraph/backup.jsonl"`
	S3Region   string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint string        `env:"S3_ENDPOINT"` // custom endpoint for MinIO
}

// Enabled reports whether periodic export should run.
func (s SyncConfig) Enabled() bool {
	return s.Interval > 0 && s.S3Bucket != ""
}

// LoadDotenv loads the env files that exist. Variables already set in the
// environment win. It returns how many files were read.
func LoadDotenv(files ...string) (int, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads .env, parses the environment and, when SSMPrefix is set,
// overlays secrets from SSM Parameter Store.
func Load(ctx context.Context) (*Config, error) {
	if _, err := LoadDotenv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	c, err := Parse()
	if err != nil {
		return nil, err
	}
	if c.SSMPrefix == "" {
		return c, nil
	}
	client, err := NewSSMClient(ctx, c.SSMRegion)
	if err != nil {
		return nil, err
	}
	if err := c.ApplySSM(ctx, client); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%sLOG_FORMAT: must be text or json, got %q", Prefix, c.LogFormat))
	}
	if c.DraftTTL <= 0 {
		errs = append(errs, fmt.Errorf("%sDRAFT_TTL: must be positive", Prefix))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, fmt.Errorf("%sSYNC_INTERVAL: must not be negative", Prefix))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
