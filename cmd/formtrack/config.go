package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/formtrack/internal/paths"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "FORMTRACK"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyRedisURL    = "redis.url"
	cfgKeyRedisPrefix = "redis.prefix"
	cfgKeyMatrixTTL   = "cache.matrix_ttl"
	cfgKeyRegistryTTL = "cache.registry_ttl"
	cfgKeyStatusTTL   = "cache.status_ttl"
	cfgKeyServeStale  = "cache.serve_stale"
	cfgKeyTimezone    = "timezone"
	cfgKeyListenAddr  = "listen_addr"

	defaultListenAddr = ":8080"
)

// envKeys are the keys FORMTRACK_* variables may override. data_dir is
// resolved by the paths package instead.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyRedisURL,
	cfgKeyRedisPrefix,
	cfgKeyMatrixTTL,
	cfgKeyRegistryTTL,
	cfgKeyStatusTTL,
	cfgKeyServeStale,
	cfgKeyTimezone,
	cfgKeyListenAddr,
}

// configFile is the structure written to a fresh config.yaml.
type configFile struct {
	Backend    string          `yaml:"backend"`
	DataDir    string          `yaml:"data_dir,omitempty"`
	Redis      configFileRedis `yaml:"redis"`
	Cache      configFileCache `yaml:"cache"`
	Timezone   string          `yaml:"timezone"`
	ListenAddr string          `yaml:"listen_addr"`
}

type configFileRedis struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type configFileCache struct {
	MatrixTTL   string `yaml:"matrix_ttl"`
	RegistryTTL string `yaml:"registry_ttl"`
	StatusTTL   string `yaml:"status_ttl"`
	ServeStale  bool   `yaml:"serve_stale"`
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	def := types.DefaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyRedisPrefix, def.Redis.Prefix)
	v.SetDefault(cfgKeyMatrixTTL, def.Cache.MatrixTTL)
	v.SetDefault(cfgKeyRegistryTTL, def.Cache.RegistryTTL)
	v.SetDefault(cfgKeyStatusTTL, def.Cache.StatusTTL)
	v.SetDefault(cfgKeyServeStale, def.Cache.ServeStale)
	v.SetDefault(cfgKeyTimezone, def.Timezone)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// configFromViper builds and validates the tracker configuration. Flags
// override the file and the environment.
func configFromViper(v *viper.Viper, flags rootFlags) (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend: v.GetString(cfgKeyBackend),
		DataDir: dataDir,
		Redis: types.RedisConfig{
			URL:    v.GetString(cfgKeyRedisURL),
			Prefix: v.GetString(cfgKeyRedisPrefix),
		},
		Cache: types.CacheConfig{
			MatrixTTL:   v.GetDuration(cfgKeyMatrixTTL),
			RegistryTTL: v.GetDuration(cfgKeyRegistryTTL),
			StatusTTL:   v.GetDuration(cfgKeyStatusTTL),
			ServeStale:  v.GetBool(cfgKeyServeStale),
		},
		Timezone: v.GetString(cfgKeyTimezone),
	}
	if flags.backend != "" {
		cfg.Backend = flags.backend
	}

	if err := cfg.Validate(); err != nil {
		return types.Config{}, &userError{err: fmt.Errorf("invalid config: %w", err)}
	}
	return cfg, nil
}

// ensureDefaultConfigFile writes config.yaml with the default settings if
// the file does not exist yet.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	def := types.DefaultConfig()
	data, err := yaml.Marshal(&configFile{
		Backend: def.Backend,
		Redis:   configFileRedis{Prefix: def.Redis.Prefix},
		Cache: configFileCache{
			MatrixTTL:   def.Cache.MatrixTTL.String(),
			RegistryTTL: def.Cache.RegistryTTL.String(),
			StatusTTL:   def.Cache.StatusTTL.String(),
			ServeStale:  def.Cache.ServeStale,
		},
		Timezone:   def.Timezone,
		ListenAddr: defaultListenAddr,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := "# formtrack configuration\n# backend: jsonl, sqlite, redis or memory\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}
