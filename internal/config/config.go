// Package config provides configuration loading and structs for kensaku.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kensaku/pkg/searcherr"
	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Scan      ScanConfig      `yaml:"scan"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig holds the vector cache backend settings.
type CacheConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	Namespace     string `yaml:"namespace"`
	Capacity      int    `yaml:"capacity"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// defaultPath is set when Path was filled in by ApplyDefaults.
	defaultPath bool
}

// Enabled reports whether a persistent or in-process cache is configured.
func (c *CacheConfig) Enabled() bool {
	return c.Backend != "" && c.Backend != CacheNone
}

// ScanConfig holds corpus traversal settings.
type ScanConfig struct {
	Workers          int  `yaml:"workers"`
	ExtractDocuments bool `yaml:"extract_documents"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	Threshold *float64 `yaml:"threshold"`
	ShowScore bool     `yaml:"show_score"`
}

// ThresholdOrDefault returns the configured threshold, or DefaultThreshold when unset.
func (s *SearchConfig) ThresholdOrDefault() float64 {
	if s.Threshold != nil {
		return *s.Threshold
	}
	return DefaultThreshold
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_millis"`
}

// Load reads and parses the config file at path, applies defaults and expands paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, searcherr.Wrap(err, searcherr.CodeConfigLoadFailure, "failed to read config", searcherr.FieldPath(path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, searcherr.Wrap(err, searcherr.CodeConfigLoadFailure, "failed to parse config", searcherr.FieldPath(path))
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg.expandPaths(wd)
	return cfg
}

// SetCacheBackend switches the cache backend. A defaulted path is replaced
// by the new backend's default; an explicitly configured path is kept.
func (c *Config) SetCacheBackend(backend string) error {
	if backend != c.Cache.Backend && c.Cache.defaultPath {
		c.Cache.Path = ""
		c.Cache.defaultPath = false
	}
	c.Cache.Backend = backend
	ApplyDefaults(c)
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	c.expandPaths(wd)
	return c.Validate()
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that enumerated settings hold known values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderOpenAI, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheSQLite, CacheBadger, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	if c.Embedding.TimeoutSecs < 0 {
		errs = append(errs, fmt.Errorf("embedding.timeout_secs must not be negative"))
	}
	if len(errs) > 0 {
		return searcherr.Wrap(errors.Join(errs...), searcherr.CodeConfigValidateInvalid, "invalid configuration")
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
	if c.Cache.Path != "" {
		c.Cache.Path = expandPath(c.Cache.Path, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
