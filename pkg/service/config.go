// Package service wires the ephemeris components into a runnable service
package service

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/ephemeris/pkg/api"
	"github.com/ethpandaops/ephemeris/pkg/fetch"
	"github.com/ethpandaops/ephemeris/pkg/frontend"
	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/redis"
	"github.com/ethpandaops/ephemeris/pkg/scheduler"
	"github.com/ethpandaops/ephemeris/pkg/segcache"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/ethpandaops/ephemeris/pkg/worker"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding file configuration
const (
	EnvLibraryPath = "EPHEMERIS_LIBRARY_PATH"
	EnvDataDir     = "EPHEMERIS_DATA_DIR"
	EnvRedisURL    = "EPHEMERIS_REDIS_URL"
	EnvLogLevel    = "EPHEMERIS_LOG_LEVEL"
)

var (
	// ErrWorkerRequiresRedis is returned when the worker is enabled without Redis
	ErrWorkerRequiresRedis = errors.New("worker requires a redis url")
)

// Config represents the complete service configuration
type Config struct {
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	Engine    swe.Config       `yaml:"engine"`
	Segments  segment.Config   `yaml:"segments"`
	Store     store.Config     `yaml:"store"`
	Fetch     fetch.Config     `yaml:"fetch"`
	Hydrator  hydrator.Config  `yaml:"hydrator"`
	Query     query.Config     `yaml:"query"`
	Redis     redis.Config     `yaml:"redis"`
	Cache     segcache.Config  `yaml:"cache"`
	Worker    worker.Config    `yaml:"worker"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	API       api.Config       `yaml:"api"`
	Frontend  frontend.Config  `yaml:"frontend"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	validators := []struct {
		name string
		fn   func() error
	}{
		{"engine", c.Engine.Validate},
		{"segments", c.Segments.Validate},
		{"store", c.Store.Validate},
		{"fetch", c.Fetch.Validate},
		{"hydrator", c.Hydrator.Validate},
		{"query", c.Query.Validate},
		{"redis", c.Redis.Validate},
		{"cache", c.Cache.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"api", c.API.Validate},
		{"frontend", c.Frontend.Validate},
	}

	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}

	if c.Worker.Enabled {
		if !c.Redis.Enabled() {
			return ErrWorkerRequiresRedis
		}

		if err := c.Worker.Validate(); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}

	return nil
}

// ApplyEnv overrides settings from EPHEMERIS_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLibraryPath); v != "" {
		c.Engine.LibraryPath = v
	}

	if v := os.Getenv(EnvDataDir); v != "" {
		c.Store.Root = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging = v
	}
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfig reads a YAML configuration over the defaults and applies
// environment overrides. A missing file is not an error when optional is set.
func LoadConfig(path string, optional bool) (*Config, error) {
	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case optional && os.IsNotExist(err):
	default:
		return nil, err
	}

	config.ApplyEnv()

	return config, nil
}
