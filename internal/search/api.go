// Package search is the harness facade: it wires the corpus store, the
// lexical engine and the dense retriever behind one API so callers do not
// deal with index lifecycles themselves.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/dense"
	"github.com/mosaiclab/unisearch/internal/embedding"
	"github.com/mosaiclab/unisearch/internal/lexical"
	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/storage"
	"github.com/mosaiclab/unisearch/internal/vector"
)

// Options configure New.
type Options struct {
	// Store holds the corpus and backs document lookups.
	Store storage.DocStore
	// Lexical is an already-opened lexical engine. Optional; LexicalSearch
	// fails with lexical.ErrEngineUnavailable when nil.
	Lexical lexical.Engine
	// Embedder produces document and query vectors for the dense retriever.
	Embedder embedding.Embedder
	// IndexDir is the dense index directory. An index already persisted
	// there is loaded; otherwise one is built from Store and saved first.
	IndexDir string
	// Dense carries the vector backend kind and embedding chunk size.
	Dense dense.Config
	// BuildLimit caps how many documents a fresh build embeds. Zero means
	// the whole corpus.
	BuildLimit int
	// Progress, when set, is invoked after each flush of a fresh build with
	// the number of documents just added.
	Progress func(added int)

	Logger *zap.Logger
}

// API is the unified search surface over one corpus.
type API struct {
	store   storage.DocStore
	lexical lexical.Engine
	dense   *dense.Searcher
	logger  *zap.Logger
}

// New prepares the facade. The dense index is built at most once per index
// directory: a directory that already holds the artifacts is loaded as-is,
// and a fresh build is persisted before the searcher loads it back, so both
// paths serve from the same on-disk state.
func New(ctx context.Context, opts Options) (*API, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kind := opts.Dense.IndexKind
	if kind == "" {
		kind = vector.KindFlat
	}

	if !dense.Exists(opts.IndexDir, kind) {
		logger.Info("dense index not found, building",
			zap.String("dir", opts.IndexDir),
			zap.String("kind", kind))
		if err := buildDense(ctx, opts, logger); err != nil {
			return nil, err
		}
	} else {
		logger.Info("reusing persisted dense index", zap.String("dir", opts.IndexDir))
	}

	searcher, err := dense.NewSearcher(opts.IndexDir, opts.Embedder, opts.Dense, logger)
	if err != nil {
		return nil, fmt.Errorf("load dense index: %w", err)
	}

	return &API{
		store:   opts.Store,
		lexical: opts.Lexical,
		dense:   searcher,
		logger:  logger,
	}, nil
}

func buildDense(ctx context.Context, opts Options, logger *zap.Logger) error {
	indexer := dense.NewIndexer(opts.IndexDir, opts.Embedder, opts.Dense, logger)
	defer indexer.Close()

	source := func(ctx context.Context, fn func(models.Document) error) error {
		return opts.Store.Iterate(ctx, fn)
	}
	if err := indexer.Build(ctx, source, dense.BuildOptions{
		Limit:    opts.BuildLimit,
		Progress: opts.Progress,
	}); err != nil {
		return fmt.Errorf("build dense index: %w", err)
	}
	if err := indexer.Save(); err != nil {
		return fmt.Errorf("save dense index: %w", err)
	}
	logger.Info("dense index built", zap.Int("documents", indexer.Size()))
	return nil
}

// LexicalSearch runs the query against the lexical engine.
func (a *API) LexicalSearch(ctx context.Context, query string, k int) ([]models.Hit, error) {
	if a.lexical == nil {
		return nil, fmt.Errorf("%w: no lexical engine configured", lexical.ErrEngineUnavailable)
	}
	return a.lexical.Search(ctx, query, k)
}

// DenseSearch runs the query against the dense retriever.
func (a *API) DenseSearch(ctx context.Context, query string, k int) ([]models.Hit, error) {
	return a.dense.Search(ctx, query, k)
}

// GetDoc returns the merged text of the identified document, or the empty
// string when the id is not in the corpus.
func (a *API) GetDoc(ctx context.Context, id string) (string, error) {
	doc, ok, err := a.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get document %s: %w", id, err)
	}
	if !ok {
		return "", nil
	}
	return doc.MergedText(), nil
}

// DenseSize reports the number of vectors served by the dense retriever.
func (a *API) DenseSize() int {
	return a.dense.Size()
}

// Close releases the dense searcher and lexical engine. The document store
// stays open; the caller owns it.
func (a *API) Close() error {
	var firstErr error
	if a.lexical != nil {
		if err := a.lexical.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.dense.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
