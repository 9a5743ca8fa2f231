package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

// ValidateConfig checks the entire configuration for logical consistency and required fields.
func ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateApplicationSettings(&cfg.Application); err != nil {
		return fmt.Errorf("invalid application settings: %w", err)
	}
	if err := validateStorageSettings(&cfg.Storage); err != nil {
		return fmt.Errorf("invalid storage settings: %w", err)
	}
	if err := validateMetricsSettings(&cfg.Metrics); err != nil {
		return fmt.Errorf("invalid metrics settings: %w", err)
	}
	return nil
}

func validateApplicationSettings(app *models.ApplicationSettings) error {
	if app.LogLevel != "" {
		level := strings.ToLower(app.LogLevel)
		if level != "debug" && level != "info" && level != "warn" && level != "error" {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", app.LogLevel)
		}
	}
	if app.LogFormat != "" {
		format := strings.ToLower(app.LogFormat)
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid log_format: %s (must be text or json)", app.LogFormat)
		}
	}
	return nil
}

func validateStorageSettings(s *models.StorageSettings) error {
	switch s.Backend {
	case "", models.BackendMemory:
	case models.BackendFile, models.BackendSQLite:
		if s.Path == "" {
			return fmt.Errorf("path cannot be empty for the %s backend", s.Backend)
		}
	case models.BackendRedis:
		if s.RedisAddr == "" {
			return errors.New("redis_addr cannot be empty for the redis backend")
		}
		if _, _, err := net.SplitHostPort(s.RedisAddr); err != nil {
			return fmt.Errorf("invalid redis_addr %q: %w", s.RedisAddr, err)
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("redis_db cannot be negative: %d", s.RedisDB)
		}
		if s.RedisTimeout.Duration < 0 {
			return errors.New("redis_timeout cannot be negative")
		}
	default:
		return fmt.Errorf("unknown backend: %s (must be memory, file, sqlite, or redis)", s.Backend)
	}
	return validateRetryPolicy(&s.Retry, "retry")
}

func validateMetricsSettings(m *models.MetricsSettings) error {
	if !m.Enabled {
		return nil
	}
	if m.Listen == "" {
		return errors.New("listen cannot be empty when metrics are enabled")
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", m.Listen, err)
	}
	return nil
}

func validateRetryPolicy(policy *models.RetryPolicy, fieldName string) error {
	if policy == nil {
		return nil
	}
	if policy.MaxRetries != nil && *policy.MaxRetries < 0 {
		return fmt.Errorf("%s: max_retries cannot be negative", fieldName)
	}
	if policy.Delay != nil && *policy.Delay < 0 {
		return fmt.Errorf("%s: delay cannot be negative", fieldName)
	}
	if policy.BackoffFactor != nil && *policy.BackoffFactor < 1.0 {
		// 1.0 means no backoff.
		return fmt.Errorf("%s: backoff_factor cannot be less than 1.0", fieldName)
	}
	return nil
}
