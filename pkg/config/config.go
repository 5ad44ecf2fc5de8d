// Package config resolves application configuration from file,
// environment, and defaults via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Graph configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Synthesis configuration
	Synthesis SynthesisConfig `mapstructure:"synthesis"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Ingest configuration
	Ingest IngestConfig `mapstructure:"ingest"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig holds metadata store configuration
type StorageConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// GraphConfig holds concept-graph backend configuration
type GraphConfig struct {
	Backend  string `mapstructure:"backend"` // memory, neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // hash, openai
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// SynthesisConfig holds the optional delegated-synthesis backend
type SynthesisConfig struct {
	Provider    string  `mapstructure:"provider"` // none, openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// RetrievalConfig tunes the hybrid retrieval policy
type RetrievalConfig struct {
	Limit            int     `mapstructure:"limit"`
	MaxDepth         int     `mapstructure:"max_depth"`
	MaxSeeds         int     `mapstructure:"max_seeds"`
	DedupThreshold   float64 `mapstructure:"dedup_threshold"`
	SeedScore        float64 `mapstructure:"seed_score"`
	TokenCostDivisor int     `mapstructure:"token_cost_divisor"`
	TokenBudget      int     `mapstructure:"token_budget"`
	BackendTimeoutMS int     `mapstructure:"backend_timeout_ms"`
}

// IngestConfig tunes chunking and embedding during book indexing
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	Workers      int `mapstructure:"workers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("storage.path", filepath.Join(home, ".tomes", "store"))
	} else {
		viper.SetDefault("storage.path", "./tomes-store")
	}
	viper.SetDefault("storage.in_memory", false)

	viper.SetDefault("graph.backend", "memory")
	viper.SetDefault("graph.uri", "bolt://localhost:7687")
	viper.SetDefault("graph.username", "neo4j")
	viper.SetDefault("graph.database", "")

	viper.SetDefault("embedding.provider", "hash")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 256)
	viper.SetDefault("embedding.batch_size", 100)

	viper.SetDefault("synthesis.provider", "none")
	viper.SetDefault("synthesis.max_tokens", 1024)
	viper.SetDefault("synthesis.temperature", 0.2)

	viper.SetDefault("retrieval.limit", 10)
	viper.SetDefault("retrieval.max_depth", 1)
	viper.SetDefault("retrieval.max_seeds", 5)
	viper.SetDefault("retrieval.dedup_threshold", 0.9)
	viper.SetDefault("retrieval.seed_score", 0.5)
	viper.SetDefault("retrieval.token_cost_divisor", 4)
	viper.SetDefault("retrieval.token_budget", 0)
	viper.SetDefault("retrieval.backend_timeout_ms", 3000)

	viper.SetDefault("ingest.chunk_size", 1200)
	viper.SetDefault("ingest.chunk_overlap", 200)
	viper.SetDefault("ingest.workers", 4)

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.Synthesis.APIKey == "" {
			config.Synthesis.APIKey = apiKey
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}

	if path := os.Getenv("TOMES_STORE_PATH"); path != "" {
		config.Storage.Path = path
	}
}
