// Package config provides configuration management for the review console.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the review console.
type Config struct {
	// API contains backend HTTP API client settings.
	API APIConfig `mapstructure:"api"`
	// Auth contains OAuth token settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Polling contains workflow status polling settings.
	Polling PollingConfig `mapstructure:"polling"`
	// Store contains state-store persistence settings.
	Store StoreConfig `mapstructure:"store"`
	// Console contains application-shell settings.
	Console ConsoleConfig `mapstructure:"console"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig holds backend API client configuration.
type APIConfig struct {
	// BaseURL is the backend API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout. A hanging request would otherwise
	// stall the sequential poll chain.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second to the backend.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the maximum transport-level retry attempts on 429/5xx.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between transport-level retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// UserAgent is the User-Agent header sent with requests.
	UserAgent string `mapstructure:"user_agent"`
	// MaxBodyBytes caps response body size when decoding.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// AuthConfig holds OAuth token configuration.
type AuthConfig struct {
	// TokenURL is the OAuth token endpoint used to refresh access tokens.
	TokenURL string `mapstructure:"token_url"`
	// ClientID is the OAuth client identifier.
	ClientID string `mapstructure:"client_id"`
	// ClientSecret is the OAuth client secret (loaded from
	// REVCON_AUTH_CLIENT_SECRET; never from config files).
	ClientSecret string `mapstructure:"-"`
	// Scopes are the OAuth scopes requested on refresh.
	Scopes []string `mapstructure:"scopes"`
	// TokenPath is the file path where the cached token is stored.
	TokenPath string `mapstructure:"token_path"`
}

// PollingConfig holds workflow status polling configuration.
type PollingConfig struct {
	// Interval is the delay between sequential status polls (default: 5s).
	Interval time.Duration `mapstructure:"interval"`
	// Jitter is the maximum random addition to each interval, spreading
	// request bursts across concurrent pollers. Zero disables jitter.
	Jitter time.Duration `mapstructure:"jitter"`
}

// StoreConfig holds state-store persistence configuration.
type StoreConfig struct {
	// SnapshotPath is the file path for the persisted store subset.
	SnapshotPath string `mapstructure:"snapshot_path"`
	// Autosave persists the snapshot on shutdown.
	Autosave bool `mapstructure:"autosave"`
}

// ConsoleConfig holds application-shell configuration.
type ConsoleConfig struct {
	// WatchWorkflowID, when set, makes the console watch this workflow until
	// it reaches a terminal state. Empty means no automatic watching: a cold
	// start never silently resumes polling.
	WatchWorkflowID string `mapstructure:"watch_workflow_id"`
	// RefreshHistory refreshes the workflow history list from the backend on
	// startup.
	RefreshHistory bool `mapstructure:"refresh_history"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables the local metrics endpoint.
	Enabled bool `mapstructure:"enabled"`
	// Address is the listen address for the metrics endpoint.
	Address string `mapstructure:"address"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("REVCON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/review-console")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Auth.ClientSecret = os.Getenv("REVCON_AUTH_CLIENT_SECRET")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api.helixir.dev")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.burst_size", 10)
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.retry_delay", "1s")
	v.SetDefault("api.user_agent", "Helixir-ReviewConsole/1.0")
	v.SetDefault("api.max_body_bytes", 10<<20)

	// Auth defaults
	v.SetDefault("auth.token_url", "https://auth.helixir.dev/oauth/token")
	v.SetDefault("auth.client_id", "review-console")
	v.SetDefault("auth.scopes", []string{"reviews:read", "reviews:write"})
	v.SetDefault("auth.token_path", ".revcon/token.json")

	// Polling defaults
	v.SetDefault("polling.interval", "5s")
	v.SetDefault("polling.jitter", "500ms")

	// Store defaults
	v.SetDefault("store.snapshot_path", ".revcon/session.json")
	v.SetDefault("store.autosave", true)

	// Console defaults
	v.SetDefault("console.watch_workflow_id", "")
	v.SetDefault("console.refresh_history", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate API config
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("api rate_limit must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api max_retries must not be negative")
	}

	// Validate polling config
	if c.Polling.Interval < time.Second {
		return fmt.Errorf("polling interval must be at least 1s, got %s", c.Polling.Interval)
	}
	if c.Polling.Jitter < 0 {
		return fmt.Errorf("polling jitter must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate metrics config
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics address is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path)
		}
	}

	// Validate store config
	if c.Store.Autosave && c.Store.SnapshotPath == "" {
		return fmt.Errorf("store snapshot_path is required when autosave is enabled")
	}

	return nil
}
