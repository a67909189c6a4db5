package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/storage"
)

// indexBatchSize is the number of documents per bleve batch during corpus
// indexing.
const indexBatchSize = 1000

// bleveDoc is the document shape stored in the bleve index.
type bleveDoc struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BleveEngine implements Engine using a bleve full-text index. Bleve's scorer
// is tf-idf with fixed parameters, so SetSimilarity reports ErrSimilarityFixed.
type BleveEngine struct {
	index bleve.Index
}

// OpenBleve opens the bleve index at path, creating and populating it from
// store when absent. Initialization failures wrap ErrEngineUnavailable.
func OpenBleve(ctx context.Context, path string, store storage.DocStore, logger *zap.Logger) (*BleveEngine, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("%w: failed to open bleve index at %s (delete the directory to force a rebuild): %v",
				ErrEngineUnavailable, path, openErr)
		}
		return &BleveEngine{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps FEVER
	// entity names searchable verbatim.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create bleve index at %s: %v", ErrEngineUnavailable, path, err)
	}

	engine := &BleveEngine{index: index}
	if err := engine.indexCorpus(ctx, store, logger); err != nil {
		_ = index.Close()
		return nil, err
	}
	return engine, nil
}

func (e *BleveEngine) indexCorpus(ctx context.Context, store storage.DocStore, logger *zap.Logger) error {
	batch := e.index.NewBatch()
	indexed := 0
	err := store.Iterate(ctx, func(doc models.Document) error {
		if err := batch.Index(doc.ID, bleveDoc{Title: doc.Title, Body: doc.Body}); err != nil {
			return fmt.Errorf("batch document %s: %w", doc.ID, err)
		}
		indexed++
		if batch.Size() >= indexBatchSize {
			if err := e.index.Batch(batch); err != nil {
				return fmt.Errorf("commit bleve batch: %w", err)
			}
			batch = e.index.NewBatch()
			if indexed%100000 == 0 {
				logger.Info("bleve indexing progress", zap.Int("documents", indexed))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if batch.Size() > 0 {
		if err := e.index.Batch(batch); err != nil {
			return fmt.Errorf("commit bleve batch: %w", err)
		}
	}
	logger.Info("bleve index built", zap.Int("documents", indexed))
	return nil
}

// Search runs a match query over title and body and returns up to k hits.
func (e *BleveEngine) Search(ctx context.Context, query string, k int) ([]models.Hit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	hits := make([]models.Hit, len(res.Hits))
	for i, hit := range res.Hits {
		hits[i] = models.Hit{DocID: hit.ID, Score: hit.Score}
	}
	return hits, nil
}

// SetSimilarity always returns ErrSimilarityFixed: bleve's tf-idf scorer does
// not expose BM25 hyperparameters.
func (e *BleveEngine) SetSimilarity(k1, b float64) error {
	return ErrSimilarityFixed
}

// DocCount returns the number of indexed documents.
func (e *BleveEngine) DocCount() (uint64, error) {
	return e.index.DocCount()
}

// Close closes the underlying index.
func (e *BleveEngine) Close() error {
	return e.index.Close()
}
