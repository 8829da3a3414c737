// Package config loads configuration for the query server and CLIs:
// viper for layered file/env config, plus an optional .env file
// (godotenv) sourced before viper reads the process environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the query server and build tools.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Build     BuildConfig     `mapstructure:"build"`
}

// ServerConfig holds REST query-server configuration.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// StoreConfig holds mapping/cache store configuration.
type StoreConfig struct {
	Path              string `mapstructure:"path"`
	MaxOpenConns      int    `mapstructure:"max_open_conns"`
	MaxIdleConns      int    `mapstructure:"max_idle_conns"`
	InMemoryCacheSize int    `mapstructure:"in_memory_cache_size"`
}

// SearchConfig holds query-resolution confidence thresholds.
type SearchConfig struct {
	RecordingMinConfidence float64 `mapstructure:"recording_min_confidence"`
	ReleaseMinConfidence   float64 `mapstructure:"release_min_confidence"`
	CombineTopN            int     `mapstructure:"combine_top_n"`
}

// RateLimitConfig holds REST query-endpoint rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// BuildConfig holds bulk-builder defaults.
type BuildConfig struct {
	Workers         int `mapstructure:"workers"`
	ChunkSize       int `mapstructure:"chunk_size"`
	TransactionSize int `mapstructure:"transaction_size"`
}

// Load loads configuration from an optional file, a .env file (if
// present), and environment variables, in that order of increasing
// precedence.
func Load(configPath string) (*Config, error) {
	// Best-effort: load a .env file into the process environment so
	// local/dev runs can set FUZZYINDEX_* without exporting by hand.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyConnectionPoolDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("store.path", "mapping.db")
	v.SetDefault("store.max_open_conns", 0)
	v.SetDefault("store.max_idle_conns", 0)
	v.SetDefault("store.in_memory_cache_size", 4096)

	v.SetDefault("search.recording_min_confidence", 0.5)
	v.SetDefault("search.release_min_confidence", 0.5)
	v.SetDefault("search.combine_top_n", 3)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("build.workers", 0)
	v.SetDefault("build.chunk_size", 500)
	v.SetDefault("build.transaction_size", 500)
}

func bindEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}
	if mode := os.Getenv("FUZZYINDEX_MODE"); mode != "" {
		v.Set("server.mode", mode)
	}
	if path := os.Getenv("FUZZYINDEX_STORE_PATH"); path != "" {
		v.Set("store.path", path)
	}
	if workers := os.Getenv("FUZZYINDEX_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			v.Set("build.workers", w)
		}
	}
	if enabled := os.Getenv("RATE_LIMIT_ENABLED"); enabled != "" {
		v.Set("rate_limit.enabled", enabled == "true")
	}
	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			v.Set("rate_limit.requests_per_second", r)
		}
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			v.Set("rate_limit.burst", b)
		}
	}
	if maxOpen := os.Getenv("FUZZYINDEX_STORE_MAX_OPEN_CONNS"); maxOpen != "" {
		if m, err := strconv.Atoi(maxOpen); err == nil {
			v.Set("store.max_open_conns", m)
		}
	}
	if maxIdle := os.Getenv("FUZZYINDEX_STORE_MAX_IDLE_CONNS"); maxIdle != "" {
		if m, err := strconv.Atoi(maxIdle); err == nil {
			v.Set("store.max_idle_conns", m)
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" && c.Server.Mode != "test" {
		return fmt.Errorf("invalid server mode: %s (must be 'debug', 'release', or 'test')", c.Server.Mode)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests_per_second must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}
	if c.Search.CombineTopN <= 0 {
		return fmt.Errorf("search.combine_top_n must be positive")
	}
	return nil
}

// applyConnectionPoolDefaults auto-detects pool sizing and worker count
// from CPU count.
func (c *Config) applyConnectionPoolDefaults() {
	numCPU := runtime.NumCPU()

	// Adaptive strategy based on CPU count:
	// - Multi-core (>4): use NumCPU directly (sufficient parallelism)
	// - Few cores (<=4): use NumCPU*2 to better utilize I/O wait time
	// - Cap at 50 to prevent excessive connections
	if c.Store.MaxOpenConns <= 0 {
		if numCPU > 4 {
			c.Store.MaxOpenConns = min(numCPU, 50)
		} else {
			c.Store.MaxOpenConns = min(numCPU*2, 50)
		}
	}
	if c.Store.MaxIdleConns <= 0 {
		c.Store.MaxIdleConns = max(c.Store.MaxOpenConns/2, 1)
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = numCPU
	}
}
