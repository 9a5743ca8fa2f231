package models

import "time"

// Config is the root configuration structure for the ThreeW application.
type Config struct {
	Application ApplicationSettings `yaml:"application"`
	Storage     StorageSettings     `yaml:"storage"`
	Runner      RunnerSettings      `yaml:"runner"`
	Metrics     MetricsSettings     `yaml:"metrics"`
}

// ApplicationSettings holds global configuration settings for the application.
type ApplicationSettings struct {
	LogLevel  string `yaml:"log_level"`  // e.g., "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // e.g., "text", "json"
}

// Storage backend names accepted in StorageSettings.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StorageSettings selects and configures the key-value store events are persisted to.
type StorageSettings struct {
	Backend       string      `yaml:"backend"`        // memory, file, sqlite or redis
	Path          string      `yaml:"path"`           // Directory (file) or database file (sqlite)
	RedisAddr     string      `yaml:"redis_addr"`     // host:port of the redis server
	RedisPassword string      `yaml:"redis_password"` // Optional redis password
	RedisDB       int         `yaml:"redis_db"`       // Redis logical database
	RedisTimeout  Duration    `yaml:"redis_timeout"`  // Dial/read/write timeout (e.g., "2s")
	KeyPrefix     string      `yaml:"key_prefix"`     // Prefix applied to every key (redis only)
	Retry         RetryPolicy `yaml:"retry"`          // Retry policy for writes to the backend
}

// RunnerSettings configures the AppleScript runner.
type RunnerSettings struct {
	Osascript    string `yaml:"osascript"`     // Path to osascript, defaults to PATH lookup
	Osacompile   string `yaml:"osacompile"`    // Path to osacompile, defaults to PATH lookup
	CompileCheck *bool  `yaml:"compile_check"` // Compile scripts before arming a timer (default true)
}

// MetricsSettings configures the optional metrics/status HTTP endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g., "127.0.0.1:9464"
}

// RetryPolicy defines the parameters for retrying failed operations.
// Pointers are used to distinguish between a value being explicitly set (even to 0 or 0.0)
// and not being set at all, allowing for proper merging with default policies.
type RetryPolicy struct {
	MaxRetries    *int     `yaml:"max_retries"`    // Max number of retries
	Delay         *float64 `yaml:"delay"`          // Initial delay in seconds
	BackoffFactor *float64 `yaml:"backoff_factor"` // Multiplier for exponential backoff (e.g., 2.0)
}

// CompileCheckEnabled reports whether scripts should be compiled before scheduling.
func (r RunnerSettings) CompileCheckEnabled() bool {
	return r.CompileCheck == nil || *r.CompileCheck
}

// Duration is a wrapper around time.Duration to allow parsing from YAML strings
// like "10s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	var err error
	d.Duration, err = time.ParseDuration(s)
	return err
}
