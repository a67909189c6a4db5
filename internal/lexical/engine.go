// Package lexical provides ranked lexical (term-based) search engines behind a
// narrow interface, so the harness core does not depend on any one backend.
package lexical

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/storage"
)

var (
	// ErrEngineUnavailable is returned when a lexical backend fails to
	// initialize. It is fatal; the caller is expected to surface the
	// remediation hint, not retry.
	ErrEngineUnavailable = errors.New("lexical engine unavailable")
	// ErrSimilarityFixed is returned by backends whose scoring function does
	// not expose BM25 hyperparameters.
	ErrSimilarityFixed = errors.New("similarity parameters are fixed for this engine")
)

// Engine is a ranked lexical searcher over the corpus.
type Engine interface {
	// Search returns up to k hits ordered by descending score.
	Search(ctx context.Context, query string, k int) ([]models.Hit, error)
	// SetSimilarity sets the BM25 saturation (k1) and length-normalization (b)
	// constants for subsequent searches. Backends with fixed scoring return
	// ErrSimilarityFixed.
	SetSimilarity(k1, b float64) error
	Close() error
}

// Engine kinds.
const (
	KindBleve = "bleve"
	KindBM25  = "bm25"
)

// Options configure Open.
type Options struct {
	// Kind selects the backend: "bleve" (default) or "bm25".
	Kind string
	// BlevePath is the on-disk bleve index location. An existing index at
	// this path is reused without re-indexing.
	BlevePath string
	// K1 and B are BM25 hyperparameters, applied where the backend supports
	// them.
	K1 float64
	B  float64
}

// Open constructs a lexical engine over the corpus in store. For the bleve
// backend an index already on disk is reused; otherwise the corpus is indexed
// first. The bm25 backend always builds its inverted index in memory.
func Open(ctx context.Context, opts Options, store storage.DocStore, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var engine Engine
	var err error
	switch opts.Kind {
	case KindBleve, "":
		engine, err = OpenBleve(ctx, opts.BlevePath, store, logger)
	case KindBM25:
		engine, err = BuildBM25(ctx, store)
	default:
		return nil, fmt.Errorf("unknown lexical engine kind: %s (supported: bleve, bm25)", opts.Kind)
	}
	if err != nil {
		return nil, err
	}

	if opts.K1 > 0 || opts.B > 0 {
		if err := engine.SetSimilarity(opts.K1, opts.B); err != nil {
			if !errors.Is(err, ErrSimilarityFixed) {
				engine.Close()
				return nil, err
			}
			logger.Warn("lexical engine does not support BM25 parameters; using its defaults",
				zap.String("kind", opts.Kind))
		}
	}
	return engine, nil
}
