package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

const (
	appDirName         = ".threew"
	defaultConfigFile  = "config.yaml"
	defaultDataDir     = "data"
	defaultDBFile      = "threew.db"
	defaultMetricsAddr = "127.0.0.1:9464"
)

// DefaultConfigPath returns ~/.threew/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultConfigFile), nil
}

func appDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, appDirName), nil
}

// Load returns the configuration for the CLI. An empty path means the default
// location, which may be absent; an explicit path must exist.
func Load(path string) (*models.Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &models.Config{}
		if err := ApplyDefaults(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a models.Config struct, fills in defaults and
// validates it.
func LoadConfig(configPath string) (*models.Config, error) {
	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var config models.Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", configPath, err)
	}

	if err := ApplyDefaults(&config); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills every unset field that has a default. Retry policies
// are merged when used, not here.
func ApplyDefaults(cfg *models.Config) error {
	if cfg.Application.LogLevel == "" {
		cfg.Application.LogLevel = "info"
	}
	if cfg.Application.LogFormat == "" {
		cfg.Application.LogFormat = "text"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = models.BackendFile
	}
	if cfg.Storage.Path == "" {
		var name string
		switch cfg.Storage.Backend {
		case models.BackendFile:
			name = defaultDataDir
		case models.BackendSQLite:
			name = defaultDBFile
		}
		if name != "" {
			dir, err := appDir()
			if err != nil {
				return err
			}
			cfg.Storage.Path = filepath.Join(dir, name)
		}
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaultMetricsAddr
	}
	return nil
}
