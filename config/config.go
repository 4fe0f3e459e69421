// Package config loads recall settings from a YAML file with RECALL_*
// environment overrides. Command line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendBadger = "badger"
	CacheBackendRedis  = "redis"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Fragment   FragmentConfig   `yaml:"fragment"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig locates the Badger database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

// AIConfig configures the embedding service.
type AIConfig struct {
	EmbeddingHost  string `yaml:"embeddingHost"`
	EmbeddingModel string `yaml:"embeddingModel"`
	Token          string `yaml:"token"`
}

// SimilarityConfig tunes search and embedding maintenance.
type SimilarityConfig struct {
	MaxDistance   float32       `yaml:"maxDistance"`
	MaxResults    int           `yaml:"maxResults"`
	SweepRate     float64       `yaml:"sweepRate"`
	PoolSize      int           `yaml:"poolSize"`
	RetryAttempts int           `yaml:"retryAttempts"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
}

// FragmentConfig sets quote context sizes.
type FragmentConfig struct {
	PrefixWords    int `yaml:"prefixWords"`
	SuffixWords    int `yaml:"suffixWords"`
	MaxMatchTokens int `yaml:"maxMatchTokens"`
	HighlightGap   int `yaml:"highlightGap"`
}

// CacheConfig selects where the classifier cache lives.
type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Prefix  string      `yaml:"prefix"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig controls the default slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: "recall-data",
		},
		AI: AIConfig{
			EmbeddingHost:  "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
			Token:          "none",
		},
		Similarity: SimilarityConfig{
			MaxDistance:   0.6,
			MaxResults:    32,
			SweepRate:     5,
			PoolSize:      2,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		Fragment: FragmentConfig{
			PrefixWords:    8,
			SuffixWords:    8,
			MaxMatchTokens: 64,
			HighlightGap:   2,
		},
		Cache: CacheConfig{
			Backend: CacheBackendBadger,
			Prefix:  "classifier",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Storage.Path == "" && !c.Storage.InMemory {
		return fmt.Errorf("%w: storage.path is required unless storage.inMemory is set", ErrInvalidConfig)
	}
	if c.Similarity.MaxDistance <= 0 {
		return fmt.Errorf("%w: similarity.maxDistance must be positive", ErrInvalidConfig)
	}
	if c.Similarity.MaxResults < 1 {
		return fmt.Errorf("%w: similarity.maxResults must be at least 1", ErrInvalidConfig)
	}
	if c.Similarity.SweepRate <= 0 {
		return fmt.Errorf("%w: similarity.sweepRate must be positive", ErrInvalidConfig)
	}
	if c.Similarity.RetryAttempts < 1 {
		return fmt.Errorf("%w: similarity.retryAttempts must be at least 1", ErrInvalidConfig)
	}
	switch c.Cache.Backend {
	case CacheBackendBadger:
	case CacheBackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	return nil
}

// applyEnvOverrides reads RECALL_* environment variables and overrides the
// corresponding fields. Malformed numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECALL_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RECALL_EMBEDDING_HOST"); v != "" {
		cfg.AI.EmbeddingHost = v
	}
	if v := os.Getenv("RECALL_EMBEDDING_MODEL"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := os.Getenv("RECALL_EMBEDDING_TOKEN"); v != "" {
		cfg.AI.Token = v
	}
	if v := os.Getenv("RECALL_MAX_DISTANCE"); v != "" {
		if d, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Similarity.MaxDistance = float32(d)
		}
	}
	if v := os.Getenv("RECALL_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Similarity.MaxResults = n
		}
	}
	if v := os.Getenv("RECALL_SWEEP_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Similarity.SweepRate = r
		}
	}
	if v := os.Getenv("RECALL_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RECALL_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("RECALL_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("RECALL_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("RECALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
