// Package config provides configuration loading and structs for the unisearch harness.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the harness.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Dense     DenseConfig     `yaml:"dense"`
	Search    SearchConfig    `yaml:"search"`
}

// DatasetConfig holds BEIR FEVER download and cache settings.
type DatasetConfig struct {
	CacheDir string `yaml:"cache_dir"`
	URL      string `yaml:"url"`
}

// StorageConfig holds paths for the document database and index directories.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	DenseIndexDir  string `yaml:"dense_index_dir"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Provider selects the embedder: "mock", "openai", or "onnx".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	ModelPath string `yaml:"model_path"`
	// Dimensions is required for the mock and onnx providers.
	Dimensions int `yaml:"dimensions"`
	MaxTokens  int `yaml:"max_tokens"`
	BatchSize  int `yaml:"batch_size"`
	CacheSize  int `yaml:"cache_size"`
}

// LexicalConfig holds lexical engine settings and BM25 hyperparameters.
type LexicalConfig struct {
	// Engine selects the backend: "bleve" or "bm25".
	Engine string  `yaml:"engine"`
	K1     float64 `yaml:"k1"`
	B      float64 `yaml:"b"`
}

// DenseConfig holds dense pipeline settings.
type DenseConfig struct {
	// IndexKind selects the vector index backend: "flat" or "faiss".
	IndexKind string `yaml:"index_kind"`
	ChunkSize int    `yaml:"chunk_size"`
	// BuildLimit caps the number of corpus documents indexed; 0 means all.
	BuildLimit int `yaml:"build_limit"`
}

// SearchConfig holds query-time defaults.
type SearchConfig struct {
	DefaultK   int `yaml:"default_k"`
	SnippetLen int `yaml:"snippet_len"`
}

// Load reads and parses the config file at path, applies defaults, and expands
// relative paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Dataset.CacheDir = expandPath(cfg.Dataset.CacheDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.DenseIndexDir = expandPath(cfg.Storage.DenseIndexDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
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
