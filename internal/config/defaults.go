package config

// FEVERDownloadURL is the BEIR distribution of the FEVER dataset.
const FEVERDownloadURL = "https://public.ukp.informatik.tu-darmstadt.de/thakur/BEIR/datasets/fever.zip"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Dataset.CacheDir == "" {
		cfg.Dataset.CacheDir = "./data/cache/fever"
	}
	if cfg.Dataset.URL == "" {
		cfg.Dataset.URL = FEVERDownloadURL
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/db/corpus.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/indexes/bleve"
	}
	if cfg.Storage.DenseIndexDir == "" {
		cfg.Storage.DenseIndexDir = "./data/indexes/dense"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "multi-qa-mpnet-base-dot-v1"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Lexical.Engine == "" {
		cfg.Lexical.Engine = "bleve"
	}
	if cfg.Lexical.K1 == 0 {
		cfg.Lexical.K1 = 0.9
	}
	if cfg.Lexical.B == 0 {
		cfg.Lexical.B = 0.4
	}
	if cfg.Dense.IndexKind == "" {
		cfg.Dense.IndexKind = "flat"
	}
	if cfg.Dense.ChunkSize == 0 {
		cfg.Dense.ChunkSize = 8192
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.SnippetLen == 0 {
		cfg.Search.SnippetLen = 120
	}
}
