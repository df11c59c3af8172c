// Package config provides CLI configuration loading from environment
// variables and .env files. It uses viper for flexible configuration
// management with sensible defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all CLI configuration loaded from environment variables or a
// .env file. Priority: environment variables > .env file > defaults.
type Config struct {
	SDKKey           string        // SDK key identifying the config to fetch
	BaseURL          string        // Config CDN endpoint override (empty = default)
	PollingMode      string        // Polling mode: autopoll, lazyload or manual
	PollInterval     time.Duration // Auto-poll cadence
	MaxInitWait      time.Duration // Auto-poll readiness bound
	CacheTTL         time.Duration // Lazy-load freshness window
	RequestTimeout   time.Duration // Per-HTTP-attempt timeout
	CacheType        string        // External cache backend: none, file or redis
	CacheDir         string        // Directory for the file cache backend
	RedisAddr        string        // Address for the redis cache backend
	Offline          bool          // Start without network access
	OverrideFile     string        // Optional local override file path
	OverrideBehavior string        // localonly, localoverremote or remoteoverlocal
	WatchOverrides   bool          // Reload the override file on change
	LogLevel         string        // debug, info, warn, error or off
	LogFormat        string        // text or json
	Metrics          bool          // Record Prometheus metrics
}

// Load reads configuration from environment variables and a .env file (if
// present). Environment variables take precedence over .env values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		SDKKey:           v.GetString("GOFLAG_SDK_KEY"),
		BaseURL:          v.GetString("GOFLAG_BASE_URL"),
		PollingMode:      v.GetString("GOFLAG_POLLING_MODE"),
		PollInterval:     v.GetDuration("GOFLAG_POLL_INTERVAL"),
		MaxInitWait:      v.GetDuration("GOFLAG_MAX_INIT_WAIT"),
		CacheTTL:         v.GetDuration("GOFLAG_CACHE_TTL"),
		RequestTimeout:   v.GetDuration("GOFLAG_REQUEST_TIMEOUT"),
		CacheType:        v.GetString("GOFLAG_CACHE_TYPE"),
		CacheDir:         v.GetString("GOFLAG_CACHE_DIR"),
		RedisAddr:        v.GetString("GOFLAG_REDIS_ADDR"),
		Offline:          v.GetBool("GOFLAG_OFFLINE"),
		OverrideFile:     v.GetString("GOFLAG_OVERRIDE_FILE"),
		OverrideBehavior: v.GetString("GOFLAG_OVERRIDE_BEHAVIOR"),
		WatchOverrides:   v.GetBool("GOFLAG_WATCH_OVERRIDES"),
		LogLevel:         v.GetString("GOFLAG_LOG_LEVEL"),
		LogFormat:        v.GetString("GOFLAG_LOG_FORMAT"),
		Metrics:          v.GetBool("GOFLAG_METRICS"),
	}, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("GOFLAG_POLLING_MODE", "autopoll")
	v.SetDefault("GOFLAG_POLL_INTERVAL", "60s")
	v.SetDefault("GOFLAG_MAX_INIT_WAIT", "5s")
	v.SetDefault("GOFLAG_CACHE_TTL", "60s")
	v.SetDefault("GOFLAG_REQUEST_TIMEOUT", "30s")
	v.SetDefault("GOFLAG_CACHE_TYPE", "none")
	v.SetDefault("GOFLAG_OVERRIDE_BEHAVIOR", "localoverremote")
	v.SetDefault("GOFLAG_LOG_LEVEL", "warn")
	v.SetDefault("GOFLAG_LOG_FORMAT", "text")
}

// ValidationError represents a configuration validation error with details
// about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks constraints that Load does not enforce. Call it at startup
// to fail fast on misconfiguration.
func (c *Config) Validate() error {
	switch c.PollingMode {
	case "autopoll", "lazyload", "manual":
	default:
		return ValidationError{
			Field:   "GOFLAG_POLLING_MODE",
			Message: fmt.Sprintf("must be 'autopoll', 'lazyload' or 'manual', got '%s'", c.PollingMode),
		}
	}

	if c.SDKKey == "" && c.OverrideBehavior != "localonly" {
		return ValidationError{
			Field:   "GOFLAG_SDK_KEY",
			Message: "an SDK key is required unless override behavior is 'localonly'",
		}
	}

	switch c.CacheType {
	case "none", "file", "redis":
	default:
		return ValidationError{
			Field:   "GOFLAG_CACHE_TYPE",
			Message: fmt.Sprintf("must be 'none', 'file' or 'redis', got '%s'", c.CacheType),
		}
	}
	if c.CacheType == "file" && c.CacheDir == "" {
		return ValidationError{
			Field:   "GOFLAG_CACHE_DIR",
			Message: "a cache directory is required when GOFLAG_CACHE_TYPE=file",
		}
	}
	if c.CacheType == "redis" && c.RedisAddr == "" {
		return ValidationError{
			Field:   "GOFLAG_REDIS_ADDR",
			Message: "a redis address is required when GOFLAG_CACHE_TYPE=redis",
		}
	}

	switch c.OverrideBehavior {
	case "localonly", "localoverremote", "remoteoverlocal":
	default:
		return ValidationError{
			Field:   "GOFLAG_OVERRIDE_BEHAVIOR",
			Message: fmt.Sprintf("must be 'localonly', 'localoverremote' or 'remoteoverlocal', got '%s'", c.OverrideBehavior),
		}
	}
	if c.OverrideBehavior == "localonly" && c.OverrideFile == "" {
		return ValidationError{
			Field:   "GOFLAG_OVERRIDE_FILE",
			Message: "an override file is required when GOFLAG_OVERRIDE_BEHAVIOR=localonly",
		}
	}

	if c.PollInterval <= 0 {
		return ValidationError{
			Field:   "GOFLAG_POLL_INTERVAL",
			Message: "poll interval must be positive",
		}
	}
	if c.CacheTTL <= 0 {
		return ValidationError{
			Field:   "GOFLAG_CACHE_TTL",
			Message: "cache TTL must be positive",
		}
	}
	if c.RequestTimeout <= 0 {
		return ValidationError{
			Field:   "GOFLAG_REQUEST_TIMEOUT",
			Message: "request timeout must be positive",
		}
	}
	return nil
}
