package dense

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/embedding"
	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/pkg/utils"
)

// Searcher answers top-k similarity queries over a loaded index. The embedder
// must match the build-time model; Load rejects a metadata mismatch and
// Search rejects a dimensionality mismatch.
type Searcher struct {
	indexer  *Indexer
	embedder embedding.Embedder
}

// NewSearcher loads the persisted index from dir for search-only use.
func NewSearcher(dir string, embedder embedding.Embedder, cfg Config, logger *zap.Logger) (*Searcher, error) {
	indexer := NewIndexer(dir, embedder, cfg, logger)
	if err := indexer.Load(); err != nil {
		return nil, err
	}
	return &Searcher{indexer: indexer, embedder: embedder}, nil
}

// SearcherOver returns a Searcher over an indexer that has already been built
// or loaded, without a save/load cycle. Returns ErrNotBuilt otherwise.
func SearcherOver(ix *Indexer) (*Searcher, error) {
	if ix.index == nil {
		return nil, ErrNotBuilt
	}
	return &Searcher{indexer: ix, embedder: ix.embedder}, nil
}

// Search embeds the query, normalizes it, and returns up to k hits ordered by
// descending inner-product score. Row positions outside the doc-id list,
// which a backend may report when it holds fewer results than requested, are
// silently dropped.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]models.Hit, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	utils.NormalizeL2(emb)

	if len(emb) != s.indexer.index.Dimensions() {
		return nil, fmt.Errorf("query embedding has %d dimensions but index expects %d (model mismatch?)",
			len(emb), s.indexer.index.Dimensions())
	}

	matches, err := s.indexer.index.Search(emb, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]models.Hit, 0, len(matches))
	for _, m := range matches {
		if m.Row < 0 || m.Row >= len(s.indexer.docIDs) {
			continue
		}
		hits = append(hits, models.Hit{DocID: s.indexer.docIDs[m.Row], Score: float64(m.Score)})
	}
	return hits, nil
}

// Size returns the number of indexed vectors.
func (s *Searcher) Size() int {
	return s.indexer.Size()
}

// Close releases the underlying index.
func (s *Searcher) Close() error {
	return s.indexer.Close()
}
