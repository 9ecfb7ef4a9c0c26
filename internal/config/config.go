// Package config loads ghfetch settings from an optional TOML file and the
// environment. Environment variables override file values; the API token is
// only read from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// Config holds all configuration for ghfetch.
type Config struct {
	// Token authenticates every API call. Secret, never read from the file.
	Token string `toml:"-" env:"GITHUB_TOKEN"`

	OutputDir    string `toml:"output_dir" env:"GHFETCH_OUTPUT_DIR" env-default:"results"`
	CacheDir     string `toml:"cache_dir" env:"GHFETCH_CACHE_DIR"`
	CacheTTLDays int    `toml:"cache_ttl_days" env:"GHFETCH_CACHE_TTL_DAYS" env-default:"30"`
	Workers      int    `toml:"workers" env:"GHFETCH_WORKERS" env-default:"10"`
	LogLevel     string `toml:"log_level" env:"GHFETCH_LOG_LEVEL" env-default:"info"`

	// StatusAddr enables the progress endpoint when non-empty, e.g. "127.0.0.1:8089".
	StatusAddr string `toml:"status_addr" env:"GHFETCH_STATUS_ADDR"`

	REST    RESTConfig    `toml:"rest" env-prefix:"GHFETCH_REST_"`
	GraphQL GraphQLConfig `toml:"graphql" env-prefix:"GHFETCH_GRAPHQL_"`
}

// RESTConfig tunes the REST client.
type RESTConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND" env-default:"1.3"`
	MaxRetries        int     `toml:"max_retries" env:"MAX_RETRIES" env-default:"30"`
	BackoffFactor     float64 `toml:"backoff_factor" env:"BACKOFF_FACTOR" env-default:"1.5"`
}

// GraphQLConfig tunes the GraphQL client.
type GraphQLConfig struct {
	QueriesPerSecond float64 `toml:"queries_per_second" env:"QUERIES_PER_SECOND" env-default:"30"`
	MaxRetries       int     `toml:"max_retries" env:"MAX_RETRIES" env-default:"10"`
	BackoffFactor    float64 `toml:"backoff_factor" env:"BACKOFF_FACTOR" env-default:"2"`
}

// DefaultPath returns ~/.config/ghfetch/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("locating config directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ghfetch", "config.toml"), nil
}

// Load reads path, then overlays the environment. An empty path uses
// DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", domain.ErrInvalidInput, c.Workers)
	case c.CacheTTLDays <= 0:
		return fmt.Errorf("%w: cache_ttl_days must be positive, got %d", domain.ErrInvalidInput, c.CacheTTLDays)
	case c.REST.RequestsPerSecond <= 0 || c.GraphQL.QueriesPerSecond <= 0:
		return fmt.Errorf("%w: request rates must be positive", domain.ErrInvalidInput)
	case c.REST.BackoffFactor < 1 || c.GraphQL.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factors must be at least 1", domain.ErrInvalidInput)
	}
	return nil
}

// RequireToken returns domain.ErrAuthRequired when no token is set.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return fmt.Errorf("%w: set GITHUB_TOKEN", domain.ErrAuthRequired)
	}
	return nil
}

// CacheTTL returns the response cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// DBPath returns the default database path under the output directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.OutputDir, "files.db")
}

// ContentDir returns the default content directory under the output directory.
func (c *Config) ContentDir() string {
	return filepath.Join(c.OutputDir, "content")
}
