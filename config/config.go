// Package config loads the proxy configuration from YAML with environment
// overrides for the values that differ between deployments.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the full proxy configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Cache     Cache     `yaml:"cache"`
	Embedding Embedding `yaml:"embedding"`
	Upstream  Upstream  `yaml:"upstream"`
	Database  Database  `yaml:"database"`
	Cost      Cost      `yaml:"cost"`
	Proxy     Proxy     `yaml:"proxy"`
}

type Server struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

type Cache struct {
	// Backend selects the store: memory, gorm, or qdrant.
	Backend             string  `yaml:"backend"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	QdrantHost          string  `yaml:"qdrant_host"`
	QdrantPort          int     `yaml:"qdrant_port"`
	QdrantCollection    string  `yaml:"qdrant_collection"`
}

type Embedding struct {
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	// RedisAddr enables the embedding result cache when non-empty.
	RedisAddr string        `yaml:"redis_addr"`
	RedisTTL  time.Duration `yaml:"redis_ttl"`
}

type Upstream struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Database struct {
	// DSN is the sqlite path (or other gorm DSN) backing the request log,
	// project registry, and the gorm cache store.
	DSN string `yaml:"dsn"`
}

type Cost struct {
	// TablePath points to a YAML rate table overriding the built-in rates.
	TablePath string `yaml:"table_path"`
}

type Proxy struct {
	CoalesceRequests bool `yaml:"coalesce_requests"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Cache: Cache{
			Backend:             "gorm",
			SimilarityThreshold: 0.9,
			QdrantHost:          "localhost",
			QdrantPort:          6334,
			QdrantCollection:    "llm_semantic_cache",
		},
		Embedding: Embedding{
			Endpoint:   "https://api.openai.com/v1/embeddings",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			Dimensions: 1536,
			RedisTTL:   7 * 24 * time.Hour,
		},
		Upstream: Upstream{
			Timeout: 60 * time.Second,
		},
		Database: Database{
			DSN: "llm_proxy.db",
		},
	}
}

// Load reads path on top of the defaults; an empty path returns the
// defaults. Environment variables override the listen address, database
// DSN, and redis address.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("fail to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("fail to parse config file: %w", err)
		}
	}

	if v := os.Getenv("PROXY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PROXY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PROXY_REDIS_ADDR"); v != "" {
		cfg.Embedding.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "gorm", "qdrant":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.SimilarityThreshold < -1 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %f out of range [-1, 1]", c.Cache.SimilarityThreshold)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.Upstream.Timeout)
	}
	return nil
}
