// Package main is the unisearch CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/config"
	"github.com/mosaiclab/unisearch/internal/dataset"
	"github.com/mosaiclab/unisearch/internal/dense"
	"github.com/mosaiclab/unisearch/internal/embedding"
	"github.com/mosaiclab/unisearch/internal/eval"
	"github.com/mosaiclab/unisearch/internal/lexical"
	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/search"
	"github.com/mosaiclab/unisearch/internal/storage"
	"github.com/mosaiclab/unisearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/unisearch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When neither file exists the built-in defaults apply, so the
// harness runs without any config file at all.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "fetch":
		runFetch()
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "eval":
		runEval()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("unisearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and returns a context cancelled on
// SIGINT/SIGTERM.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, context.Context, context.CancelFunc) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return cfg, logger, ctx, cancel
}

// newEmbedder constructs the configured embedding provider, wrapped in the
// LRU cache.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var inner embedding.Embedder
	var err error
	switch cfg.Embedding.Provider {
	case "mock":
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case "openai":
		inner, err = embedding.NewOpenAIEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL,
			cfg.Embedding.APIKeyEnv, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize)
	case "onnx":
		inner, err = embedding.NewONNXEmbedder(cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, openai, onnx)", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
}

// openStore opens the SQLite corpus store, creating parent directories.
func openStore(cfg *config.Config) (storage.DocStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return storage.NewSQLiteStore(cfg.Storage.DatabasePath)
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, ctx, cancel := setup(*configPath, *debug)
	defer cancel()
	defer logger.Sync()

	paths, err := dataset.EnsureFEVER(ctx, cfg.Dataset.CacheDir, cfg.Dataset.URL, logger)
	if err != nil {
		logger.Fatal("Failed to fetch dataset", zap.Error(err))
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer store.Close()

	if n, countErr := store.Count(ctx); countErr == nil && n > 0 {
		fmt.Printf("Corpus already loaded: %d documents in %s\n", n, cfg.Storage.DatabasePath)
		return
	}

	bar := progressbar.Default(-1, "loading corpus")
	batch := make([]models.Document, 0, 1000)
	loaded := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.Put(ctx, batch); err != nil {
			return err
		}
		loaded += len(batch)
		bar.Add(len(batch))
		batch = batch[:0]
		return nil
	}
	err = dataset.ReadCorpus(paths.Corpus, func(doc models.Document) error {
		batch = append(batch, doc)
		if len(batch) == cap(batch) {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	bar.Finish()
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	fmt.Printf("Loaded %d documents into %s\n", loaded, cfg.Storage.DatabasePath)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 0, "max documents to embed (0 = whole corpus, overrides config)")
	chunkSize := fs.Int("chunk-size", 0, "embedding flush size (0 = config default)")
	model := fs.String("model", "", "embedding model name (overrides config)")
	indexDir := fs.String("index-dir", "", "dense index directory (overrides config)")
	lexicalOnly := fs.Bool("lexical-only", false, "build only the lexical index")
	denseOnly := fs.Bool("dense-only", false, "build only the dense index")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, ctx, cancel := setup(*configPath, *debug)
	defer cancel()
	defer logger.Sync()

	if *chunkSize > 0 {
		cfg.Dense.ChunkSize = *chunkSize
	}
	if *model != "" {
		cfg.Embedding.Model = *model
	}
	if *indexDir != "" {
		cfg.Storage.DenseIndexDir = *indexDir
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		logger.Fatal("Failed to count corpus", zap.Error(err))
	}
	if count == 0 {
		fmt.Println("Corpus is empty; run \"unisearch fetch\" first")
		os.Exit(1)
	}

	if !*denseOnly && cfg.Lexical.Engine == lexical.KindBleve {
		fmt.Println("Building lexical index...")
		engine, lexErr := lexical.Open(ctx, lexical.Options{
			Kind:      cfg.Lexical.Engine,
			BlevePath: cfg.Storage.BleveIndexPath,
			K1:        cfg.Lexical.K1,
			B:         cfg.Lexical.B,
		}, store, logger)
		if lexErr != nil {
			logger.Fatal("Failed to build lexical index", zap.Error(lexErr))
		}
		engine.Close()
		fmt.Printf("Lexical index ready at %s\n", cfg.Storage.BleveIndexPath)
	}

	if *lexicalOnly {
		return
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer embedder.Close()

	buildLimit := cfg.Dense.BuildLimit
	if *limit > 0 {
		buildLimit = *limit
	}
	total := count
	if buildLimit > 0 && buildLimit < total {
		total = buildLimit
	}

	fmt.Println("Building dense index...")
	bar := progressbar.Default(int64(total), "embedding")
	indexer := dense.NewIndexer(cfg.Storage.DenseIndexDir, embedder, dense.Config{
		IndexKind: cfg.Dense.IndexKind,
		ChunkSize: cfg.Dense.ChunkSize,
	}, logger)
	defer indexer.Close()

	source := func(ctx context.Context, fn func(models.Document) error) error {
		return store.Iterate(ctx, fn)
	}
	err = indexer.Build(ctx, source, dense.BuildOptions{
		Limit:    buildLimit,
		Progress: progressAdder(bar),
	})
	bar.Finish()
	if err != nil {
		logger.Fatal("Failed to build dense index", zap.Error(err))
	}
	if err := indexer.Save(); err != nil {
		logger.Fatal("Failed to save dense index", zap.Error(err))
	}
	fmt.Printf("Dense index ready: %d vectors in %s\n", indexer.Size(), cfg.Storage.DenseIndexDir)
}

// progressAdder advances the bar by each per-flush document count reported by
// the dense build.
func progressAdder(bar *progressbar.ProgressBar) func(added int) {
	return func(added int) { bar.Add(added) }
}

// buildQuery joins all positional args with spaces so multi-word queries work
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mode := fs.String("mode", "both", "retrieval mode: lexical, dense, or both")
	k := fs.Int("k", 0, "number of results (0 = config default)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(os.Args[2:])

	cfg, logger, ctx, cancel := setup(*configPath, *debug)
	defer cancel()
	defer logger.Sync()

	topK := cfg.Search.DefaultK
	if *k > 0 {
		topK = *k
	}
	wantLexical := *mode == "lexical" || *mode == "both"
	wantDense := *mode == "dense" || *mode == "both"
	if !wantLexical && !wantDense {
		fmt.Printf("Unknown mode %q; use lexical, dense, or both\n", *mode)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer store.Close()

	query := buildQuery(fs.Args())
	if query == "" {
		// Without a query the first judged benchmark query is a useful
		// smoke test.
		paths := dataset.LocalPaths(cfg.Dataset.CacheDir)
		if !paths.Complete() {
			printSearchUsage(fs)
			os.Exit(1)
		}
		qrels, qErr := dataset.ReadQrels(paths.Qrels)
		if qErr != nil {
			logger.Fatal("Failed to read qrels", zap.Error(qErr))
		}
		var id string
		id, query, qErr = dataset.FirstTestQuery(paths.Queries, qrels)
		if qErr != nil {
			logger.Fatal("Failed to pick a benchmark query", zap.Error(qErr))
		}
		fmt.Printf("No query given; using benchmark query %s: %q\n\n", id, query)
	}

	api, err := openAPI(ctx, cfg, store, wantLexical, logger)
	if err != nil {
		logger.Fatal("Failed to initialize search", zap.Error(err))
	}
	defer api.Close()

	if wantLexical {
		hits, searchErr := api.LexicalSearch(ctx, query, topK)
		if searchErr != nil {
			logger.Fatal("Lexical search failed", zap.Error(searchErr))
		}
		printHits(ctx, "Lexical results", hits, api, cfg.Search.SnippetLen)
	}
	if wantDense {
		hits, searchErr := api.DenseSearch(ctx, query, topK)
		if searchErr != nil {
			logger.Fatal("Dense search failed", zap.Error(searchErr))
		}
		printHits(ctx, "Dense results", hits, api, cfg.Search.SnippetLen)
	}
}

// openAPI wires the facade from config. The lexical engine is optional and
// only opened when the caller will use it.
func openAPI(ctx context.Context, cfg *config.Config, store storage.DocStore, withLexical bool, logger *zap.Logger) (*search.API, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var engine lexical.Engine
	if withLexical {
		engine, err = lexical.Open(ctx, lexical.Options{
			Kind:      cfg.Lexical.Engine,
			BlevePath: cfg.Storage.BleveIndexPath,
			K1:        cfg.Lexical.K1,
			B:         cfg.Lexical.B,
		}, store, logger)
		if err != nil {
			embedder.Close()
			return nil, err
		}
	}

	api, err := search.New(ctx, search.Options{
		Store:    store,
		Lexical:  engine,
		Embedder: embedder,
		IndexDir: cfg.Storage.DenseIndexDir,
		Dense: dense.Config{
			IndexKind: cfg.Dense.IndexKind,
			ChunkSize: cfg.Dense.ChunkSize,
		},
		BuildLimit: cfg.Dense.BuildLimit,
		Logger:     logger,
	})
	if err != nil {
		if engine != nil {
			engine.Close()
		}
		embedder.Close()
		return nil, err
	}
	return api, nil
}

func printHits(ctx context.Context, title string, hits []models.Hit, api *search.API, snippetLen int) {
	fmt.Printf("%s (%d):\n", title, len(hits))
	for i, hit := range hits {
		text, err := api.GetDoc(ctx, hit.DocID)
		if err != nil {
			text = ""
		}
		fmt.Printf("%3d. %-30s %.4f  %s\n", i+1, hit.DocID, hit.Score, utils.Snippet(text, snippetLen))
	}
	fmt.Println()
}

func runEval() {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mode := fs.String("mode", "both", "retrieval mode to evaluate: lexical, dense, or both")
	k := fs.Int("k", 0, "evaluation cutoff (0 = config default)")
	maxQueries := fs.Int("max-queries", 0, "evaluate at most this many queries (0 = all)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, ctx, cancel := setup(*configPath, *debug)
	defer cancel()
	defer logger.Sync()

	topK := cfg.Search.DefaultK
	if *k > 0 {
		topK = *k
	}
	wantLexical := *mode == "lexical" || *mode == "both"
	wantDense := *mode == "dense" || *mode == "both"
	if !wantLexical && !wantDense {
		fmt.Printf("Unknown mode %q; use lexical, dense, or both\n", *mode)
		os.Exit(1)
	}

	paths, err := dataset.EnsureFEVER(ctx, cfg.Dataset.CacheDir, cfg.Dataset.URL, logger)
	if err != nil {
		logger.Fatal("Failed to fetch dataset", zap.Error(err))
	}
	queries, err := dataset.ReadQueries(paths.Queries)
	if err != nil {
		logger.Fatal("Failed to read queries", zap.Error(err))
	}
	qrels, err := dataset.ReadQrels(paths.Qrels)
	if err != nil {
		logger.Fatal("Failed to read qrels", zap.Error(err))
	}
	testQueries := dataset.TestQueries(queries, qrels)
	if *maxQueries > 0 {
		testQueries = truncateQueries(testQueries, *maxQueries)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer store.Close()

	api, err := openAPI(ctx, cfg, store, wantLexical, logger)
	if err != nil {
		logger.Fatal("Failed to initialize search", zap.Error(err))
	}
	defer api.Close()

	if wantLexical {
		m, evalErr := eval.Run(ctx, api.LexicalSearch, testQueries, qrels, topK, true, logger)
		if evalErr != nil {
			logger.Fatal("Lexical evaluation failed", zap.Error(evalErr))
		}
		fmt.Printf("lexical: %s\n", m)
	}
	if wantDense {
		m, evalErr := eval.Run(ctx, api.DenseSearch, testQueries, qrels, topK, true, logger)
		if evalErr != nil {
			logger.Fatal("Dense evaluation failed", zap.Error(evalErr))
		}
		fmt.Printf("dense:   %s\n", m)
	}
}

// truncateQueries keeps the first n queries in sorted-id order, so repeated
// capped runs evaluate the same subset.
func truncateQueries(queries models.Queries, n int) models.Queries {
	ids := make([]string, 0, len(queries))
	for id := range queries {
		ids = append(ids, id)
	}
	if len(ids) <= n {
		return queries
	}
	sort.Strings(ids)
	out := make(models.Queries, n)
	for _, id := range ids[:n] {
		out[id] = queries[id]
	}
	return out
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, ctx, cancel := setup(*configPath, false)
	defer cancel()
	defer logger.Sync()

	paths := dataset.LocalPaths(cfg.Dataset.CacheDir)
	fmt.Printf("Dataset cache:    %s (complete: %v)\n", cfg.Dataset.CacheDir, paths.Complete())

	if _, err := os.Stat(cfg.Storage.DatabasePath); err == nil {
		store, storeErr := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if storeErr == nil {
			if n, countErr := store.Count(ctx); countErr == nil {
				fmt.Printf("Document store:   %s (%d documents)\n", cfg.Storage.DatabasePath, n)
			}
			store.Close()
		}
	} else {
		fmt.Printf("Document store:   %s (missing)\n", cfg.Storage.DatabasePath)
	}

	if _, err := os.Stat(cfg.Storage.BleveIndexPath); err == nil {
		fmt.Printf("Lexical index:    %s\n", cfg.Storage.BleveIndexPath)
	} else {
		fmt.Printf("Lexical index:    %s (missing)\n", cfg.Storage.BleveIndexPath)
	}

	if dense.Exists(cfg.Storage.DenseIndexDir, cfg.Dense.IndexKind) {
		meta, metaErr := dense.ReadMeta(cfg.Storage.DenseIndexDir)
		if metaErr != nil {
			fmt.Printf("Dense index:      %s (unreadable metadata: %v)\n", cfg.Storage.DenseIndexDir, metaErr)
		} else {
			fmt.Printf("Dense index:      %s (model=%s size=%d type=%s)\n",
				cfg.Storage.DenseIndexDir, meta.Model, meta.Size, meta.Type)
		}
	} else {
		fmt.Printf("Dense index:      %s (missing)\n", cfg.Storage.DenseIndexDir)
	}
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: unisearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Without a query, the first judged benchmark query is used.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  unisearch search who wrote hamlet
  unisearch search --mode dense "theory of relativity"
  unisearch search --mode lexical -k 20 climate change
`)
}

func printUsage() {
	fmt.Println(`unisearch - lexical and dense retrieval harness over BEIR FEVER

Usage:
  unisearch <command> [flags]

Commands:
  fetch     download the dataset and load the corpus into the document store
  build     build the lexical and dense indexes
  search    query the indexes (lexical, dense, or both)
  eval      score retrieval against the benchmark judgments
  status    show dataset, store, and index state
  version   print version
  help      show this help

Run "unisearch <command> -h" for command flags.`)
}
