// Package common provides shared utilities for folio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for folio
type Config struct {
	Environment string          `toml:"environment"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Analytics   AnalyticsConfig `toml:"analytics"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// StorageConfig holds SurrealDB connection settings.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second, burst 1
	Timeout   string `toml:"timeout"`

	// Circuit breaker: trips after BreakerFailures consecutive failures and
	// stays open for BreakerCooldown.
	BreakerFailures int    `toml:"breaker_failures"`
	BreakerCooldown string `toml:"breaker_cooldown"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetBreakerCooldown parses and returns the breaker open duration
func (c *EODHDConfig) GetBreakerCooldown() time.Duration {
	d, err := time.ParseDuration(c.BreakerCooldown)
	if err != nil {
		return time.Minute
	}
	return d
}

// AnalyticsConfig tunes the risk, forecast and recommendation pipeline.
type AnalyticsConfig struct {
	RiskFreeRate             float64 `toml:"risk_free_rate"`
	TradingDays              int     `toml:"trading_days"`
	QuoteTTL                 string  `toml:"quote_ttl"`
	ForecastDays             int     `toml:"forecast_days"`
	MaxSectorRecommendations int     `toml:"max_sector_recommendations"` // 0 = unlimited
}

// GetQuoteTTL parses and returns the quote cache TTL
func (c *AnalyticsConfig) GetQuoteTTL() time.Duration {
	d, err := time.ParseDuration(c.QuoteTTL)
	if err != nil || d <= 0 {
		return FreshnessQuote
	}
	return d
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	RecordSpec  string `toml:"record_spec"` // cron spec for the daily value snapshot
	MetricsAddr string `toml:"metrics_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "folio",
			Database:  "folio",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:         "https://eodhd.com/api",
				RateLimit:       1,
				Timeout:         "10s",
				BreakerFailures: 5,
				BreakerCooldown: "1m",
			},
		},
		Analytics: AnalyticsConfig{
			RiskFreeRate:             0.04,
			TradingDays:              252,
			QuoteTTL:                 "300s",
			ForecastDays:             30,
			MaxSectorRecommendations: 3,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			RecordSpec:  "30 16 * * 1-5",
			MetricsAddr: ":9108",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("FOLIO_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("FOLIO_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("FOLIO_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// EODHD_API_KEY is the conventional name; FOLIO_ prefix wins when both are set.
	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := os.Getenv("FOLIO_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}

	if v := os.Getenv("FOLIO_RISK_FREE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Analytics.RiskFreeRate = f
		}
	}

	if v := os.Getenv("FOLIO_SCHEDULER_ENABLED"); v != "" {
		config.Scheduler.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the config keys that must be set before the
// upstream provider can be used.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Clients.EODHD.APIKey == "" {
		missing = append(missing, "clients.eodhd.api_key")
	}
	if c.Storage.Address == "" {
		missing = append(missing, "storage.address")
	}
	return missing
}
