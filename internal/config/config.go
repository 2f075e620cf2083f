// Package config loads the settings shared by every hospital-hub binary
// from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// OpsPort serves /health, /ready and /metrics of the worker binaries.
	OpsPort  string `mapstructure:"OPS_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`

	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	AuthProviderURL     string        `mapstructure:"AUTH_PROVIDER_URL"`
	AuthProviderKey     string        `mapstructure:"AUTH_PROVIDER_KEY"`
	AuthProviderTimeout time.Duration `mapstructure:"AUTH_PROVIDER_TIMEOUT"`

	// SeedDemoAccounts loads the demo staff logins into the local directory.
	SeedDemoAccounts bool     `mapstructure:"SEED_DEMO_ACCOUNTS"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`

	OTLPEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRate float64 `mapstructure:"TRACE_SAMPLE_RATE"`

	ReportCacheTTL time.Duration `mapstructure:"REPORT_CACHE_TTL"`

	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxMaxRetries   int           `mapstructure:"OUTBOX_MAX_RETRIES"`
	OutboxRetention    time.Duration `mapstructure:"OUTBOX_RETENTION"`

	ActivityGroup      string `mapstructure:"ACTIVITY_CONSUMER_GROUP"`
	ActivityWorkers    int    `mapstructure:"ACTIVITY_WORKERS"`
	SupplierWebhookURL string `mapstructure:"SUPPLIER_WEBHOOK_URL"`
}

var defaults = map[string]any{
	"ENV":                     "development",
	"PORT":                    "8080",
	"OPS_PORT":                "9090",
	"LOG_LEVEL":               "info",
	"DB_MAX_CONNS":            20,
	"DB_MIN_CONNS":            2,
	"KAFKA_BROKERS":           "localhost:9092",
	"SESSION_TTL":             "12h",
	"AUTH_PROVIDER_TIMEOUT":   "5s",
	"SEED_DEMO_ACCOUNTS":      true,
	"CORS_ORIGINS":            "http://localhost:5173",
	"S3_REGION":               "auto",
	"S3_BUCKET":               "hospital-documents",
	"TRACE_SAMPLE_RATE":       1.0,
	"REPORT_CACHE_TTL":        "60s",
	"OUTBOX_BATCH_SIZE":       100,
	"OUTBOX_POLL_INTERVAL":    "250ms",
	"OUTBOX_MAX_RETRIES":      5,
	"OUTBOX_RETENTION":        "168h",
	"ACTIVITY_CONSUMER_GROUP": "activity-service",
	"ACTIVITY_WORKERS":        8,
}

// Load reads the environment, overlaid on .env when present.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// AutomaticEnv only answers Get; Unmarshal needs every key bound.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

var keys = []string{
	"ENV", "PORT", "OPS_PORT", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"KAFKA_BROKERS", "SESSION_SECRET", "SESSION_TTL", "AUTH_PROVIDER_URL", "AUTH_PROVIDER_KEY",
	"AUTH_PROVIDER_TIMEOUT", "SEED_DEMO_ACCOUNTS", "CORS_ORIGINS", "S3_ENDPOINT", "S3_REGION",
	"S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"TRACE_SAMPLE_RATE", "REPORT_CACHE_TTL", "OUTBOX_BATCH_SIZE", "OUTBOX_POLL_INTERVAL",
	"OUTBOX_MAX_RETRIES", "OUTBOX_RETENTION", "ACTIVITY_CONSUMER_GROUP", "ACTIVITY_WORKERS",
	"SUPPLIER_WEBHOOK_URL",
}

// splitList accepts both repeated values and one comma-separated value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ValidateAPI checks the settings only the HTTP API needs.
func (c *Config) ValidateAPI() error {
	switch {
	case c.SessionSecret == "" && !c.IsDev():
		return errors.New("SESSION_SECRET is required outside development")
	case c.SessionSecret != "" && len(c.SessionSecret) < 32:
		return errors.New("SESSION_SECRET must be at least 32 characters")
	case c.AuthProviderURL != "" && c.AuthProviderKey == "":
		return errors.New("AUTH_PROVIDER_KEY is required when AUTH_PROVIDER_URL is set")
	}
	return nil
}

// Logger builds the production zap logger at LOG_LEVEL.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if c.IsDev() {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zcfg.Build()
}
