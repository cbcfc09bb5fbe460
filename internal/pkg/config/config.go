package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/PromptForge/internal/pkg/env"
)

// Config is the process configuration, read once at startup.
type Config struct {
	AppEnv  string `validate:"oneof=dev prod test"`
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	DB    DBConfig
	Cache CacheConfig

	StripeWebhookSecret    string        `validate:"required"`
	StripeWebhookTolerance time.Duration `validate:"gte=0"`
	WebhookTimeout         time.Duration `validate:"gt=0"`

	InternalAPIToken string `validate:"required,min=16"`
	MetricsUser      string `validate:"required"`
	MetricsPassword  string `validate:"required"`
	OpenAPIFile      string
}

type DBConfig struct {
	User     string `validate:"required"`
	Password string
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
}

type CacheConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Password string
	DB       int `validate:"gte=0"`
}

// Load builds the configuration from env.GetEnv and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:  env.GetEnv("APP_ENV", "prod"),
		AppHost: env.GetEnv("APP_HOST", "localhost"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
		DB:      dbFromEnv(),
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		StripeWebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		InternalAPIToken:    env.GetEnv("INTERNAL_API_TOKEN", ""),
		MetricsUser:         env.GetEnv("METRICS_USER", "admin"),
		MetricsPassword:     env.GetEnv("METRICS_PASSWORD", ""),
		OpenAPIFile:         env.GetEnv("OPENAPI_FILE", "public/docs/v1/openapi.yml"),
	}

	var err error
	if cfg.Cache.DB, err = strconv.Atoi(env.GetEnv("CACHE_DB", "0")); err != nil {
		return nil, fmt.Errorf("CACHE_DB: %w", err)
	}
	if cfg.StripeWebhookTolerance, err = time.ParseDuration(env.GetEnv("STRIPE_WEBHOOK_TOLERANCE", "5m")); err != nil {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_TOLERANCE: %w", err)
	}
	if cfg.WebhookTimeout, err = time.ParseDuration(env.GetEnv("BILLING_WEBHOOK_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("BILLING_WEBHOOK_TIMEOUT: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDB reads only the database settings, for tools that need nothing else.
func LoadDB() (DBConfig, error) {
	db := dbFromEnv()
	if err := validator.New().Struct(db); err != nil {
		return DBConfig{}, fmt.Errorf("invalid database configuration: %w", err)
	}
	return db, nil
}

func dbFromEnv() DBConfig {
	return DBConfig{
		User:     env.GetEnv("DB_USER", "promptforge"),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		Name:     env.GetEnv("DB_NAME", "promptforge"),
	}
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.AppHost, c.AppPort)
}

// DSN is the go-sql-driver/mysql data source name used by gorm.
func (d DBConfig) DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL is the golang-migrate database URL.
func (d DBConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func (c CacheConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
