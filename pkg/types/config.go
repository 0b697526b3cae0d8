package types

import (
	"errors"
	"time"
)

// Config holds backend selection, cache freshness windows, and the
// timestamp zone for the tracker.
type Config struct {
	Backend  string      `json:"backend" yaml:"backend"`
	DataDir  string      `json:"data_dir" yaml:"data_dir,omitempty"`
	Redis    RedisConfig `json:"redis" yaml:"redis,omitempty"`
	Cache    CacheConfig `json:"cache" yaml:"cache"`
	Timezone string      `json:"timezone" yaml:"timezone,omitempty"`
}

// RedisConfig selects the Redis server used by the redis backend.
type RedisConfig struct {
	URL    string `json:"url" yaml:"url,omitempty"`
	Prefix string `json:"prefix" yaml:"prefix,omitempty"`
}

// CacheConfig holds the per-table freshness windows.
type CacheConfig struct {
	MatrixTTL   time.Duration `json:"matrix_ttl" yaml:"matrix_ttl"`
	RegistryTTL time.Duration `json:"registry_ttl" yaml:"registry_ttl"`
	StatusTTL   time.Duration `json:"status_ttl" yaml:"status_ttl"`
	ServeStale  bool          `json:"serve_stale" yaml:"serve_stale"`
}

// TTLs returns the freshness window of each standard table.
func (c CacheConfig) TTLs() map[string]time.Duration {
	return map[string]time.Duration{
		MatrixTable:   c.MatrixTTL,
		RegistryTable: c.RegistryTTL,
		StatusTable:   c.StatusTTL,
	}
}

// Supported backend names.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Default freshness windows. The status log changes more often than the
// matrix and registry, so it gets the shorter window.
const (
	DefaultMatrixTTL   = 300 * time.Second
	DefaultRegistryTTL = 300 * time.Second
	DefaultStatusTTL   = 60 * time.Second
	DefaultRedisPrefix = "formtrack"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrRedisURLEmpty   = errors.New("redis backend requires redis.url")
	ErrTTLInvalid      = errors.New("cache ttl must not be negative")
	ErrTimezoneUnknown = errors.New("unknown timezone")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendJSONL:  true,
	BackendSQLite: true,
	BackendRedis:  true,
	BackendMemory: true,
}

// DefaultConfig returns a jsonl-backed config with the default windows.
func DefaultConfig() Config {
	return Config{
		Backend: BackendJSONL,
		Redis:   RedisConfig{Prefix: DefaultRedisPrefix},
		Cache: CacheConfig{
			MatrixTTL:   DefaultMatrixTTL,
			RegistryTTL: DefaultRegistryTTL,
			StatusTTL:   DefaultStatusTTL,
		},
		Timezone: "Local",
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendRedis && c.Redis.URL == "" {
		return ErrRedisURLEmpty
	}
	if c.Cache.MatrixTTL < 0 || c.Cache.RegistryTTL < 0 || c.Cache.StatusTTL < 0 {
		return ErrTTLInvalid
	}
	if _, err := c.Location(); err != nil {
		return ErrTimezoneUnknown
	}
	return nil
}

// Location resolves Timezone. An empty value or "Local" selects the
// process-local zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}
