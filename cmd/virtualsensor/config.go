package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/virtualsensor"
)

// Store backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendRedis  = "redis"
)

// Config is the daemon configuration file.
type Config struct {
	Sensor  virtualsensor.Config `json:"sensor" yaml:"sensor"`
	Store   StoreConfig          `json:"store" yaml:"store"`
	NATS    NATSConfig           `json:"nats" yaml:"nats"`
	Metrics MetricsConfig        `json:"metrics" yaml:"metrics"`
}

// StoreConfig selects where the sensor description is persisted.
type StoreConfig struct {
	Backend     string `json:"backend" yaml:"backend"`
	Directory   string `json:"directory,omitempty" yaml:"directory,omitempty"`
	Bucket      string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// NATSConfig holds the NATS connection. An empty URL disables record
// publishing unless the store backend needs NATS.
type NATSConfig struct {
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		Sensor: virtualsensor.DefaultConfig(),
		Store: StoreConfig{
			Backend:   BackendFile,
			Directory: "/var/lib/virtualsensor",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := c.Sensor.Validate(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Directory == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "store.directory is required for the file backend")
		}
	case BackendMemory, BackendRedis:
	case BackendNATS:
		if c.NATS.URL == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "nats.url is required for the nats backend")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"store.backend must be one of: file, memory, nats, redis")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("invalid metrics port: %d", c.Metrics.Port))
	}
	return nil
}

// loadConfig reads path over DefaultConfig. Files ending in .yaml or .yml
// are YAML, anything else JSON.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "loadConfig", "parse config")
	}
	return &cfg, nil
}
