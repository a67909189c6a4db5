// Package dense implements the dense indexing and search pipeline: streaming
// corpus ingestion, chunked batch embedding, vector index construction, and
// persistence of the index together with its doc-id list and metadata.
package dense

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/embedding"
	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/vector"
	"github.com/mosaiclab/unisearch/pkg/utils"
)

// Artifact file names inside the index directory. The index file extension is
// the vector backend kind, e.g. index.flat or index.faiss.
const (
	docIDsFile = "docids.txt"
	metaFile   = "meta.json"
)

// DefaultChunkSize is the flush threshold for the build buffer.
const DefaultChunkSize = 8192

// Config holds dense pipeline settings.
type Config struct {
	// IndexKind selects the vector index backend ("flat" or "faiss").
	IndexKind string
	// ChunkSize is the buffer flush threshold during Build.
	ChunkSize int
}

func (c Config) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return DefaultChunkSize
}

// Meta is the metadata record persisted alongside the index for provenance.
type Meta struct {
	Model string `json:"model"`
	Size  int    `json:"size"`
	Type  string `json:"type"`
}

// DocSource streams documents to the indexer in a stable order.
type DocSource func(ctx context.Context, fn func(models.Document) error) error

// FromSlice returns a DocSource over an in-memory document slice.
func FromSlice(docs []models.Document) DocSource {
	return func(ctx context.Context, fn func(models.Document) error) error {
		for _, doc := range docs {
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	}
}

// BuildOptions tune a single Build call.
type BuildOptions struct {
	// Limit stops consuming the source after this many documents; 0 means all.
	Limit int
	// ChunkSize overrides the configured flush threshold when positive.
	ChunkSize int
	// Progress, when set, is called after each flush with the number of
	// documents just added to the index.
	Progress func(added int)
}

// errLimitReached stops source iteration once BuildOptions.Limit is hit.
var errLimitReached = errors.New("document limit reached")

// Indexer builds and persists a vector index over merged document text. The
// index row order stays positionally aligned, 1:1 and in order, with the
// doc-id list; the index itself stores no ids.
type Indexer struct {
	dir      string
	config   Config
	embedder embedding.Embedder
	logger   *zap.Logger

	index  vector.Index
	docIDs []string
}

// NewIndexer creates an indexer that persists into dir using the given
// embedder. A single Build per instance; there is no incremental update.
func NewIndexer(dir string, embedder embedding.Embedder, cfg Config, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		dir:      dir,
		config:   cfg,
		embedder: embedder,
		logger:   logger,
	}
}

// indexPath returns the index artifact path for the configured backend kind.
func (ix *Indexer) indexPath() string {
	kind := ix.config.IndexKind
	if kind == "" {
		kind = vector.KindFlat
	}
	return filepath.Join(ix.dir, "index."+kind)
}

// Build consumes the document source, embedding merged text in chunks and
// appending the vectors to an in-memory index. The index is constructed
// lazily on the first flush, sized to the observed vector width. Build writes
// nothing to disk; call Save afterwards. Returns ErrEmptyCorpus when the
// source yields no documents.
func (ix *Indexer) Build(ctx context.Context, source DocSource, opts BuildOptions) error {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ix.config.chunkSize()
	}

	ix.index = nil
	ix.docIDs = nil

	var bufTexts []string
	var bufIDs []string

	flush := func() error {
		if len(bufTexts) == 0 {
			return nil
		}
		embs, err := ix.embedder.EmbedBatch(ctx, bufTexts)
		if err != nil {
			return fmt.Errorf("embed batch of %d documents: %w", len(bufTexts), err)
		}
		if len(embs) != len(bufTexts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(embs), len(bufTexts))
		}
		// Unit-normalize so inner-product search scores are cosine similarity.
		for _, emb := range embs {
			utils.NormalizeL2(emb)
		}
		if ix.index == nil {
			idx, err := vector.New(ix.config.IndexKind, len(embs[0]))
			if err != nil {
				return err
			}
			ix.index = idx
		}
		if err := ix.index.Add(embs); err != nil {
			return fmt.Errorf("add vectors to index: %w", err)
		}
		ix.docIDs = append(ix.docIDs, bufIDs...)
		added := len(bufIDs)
		bufTexts = bufTexts[:0]
		bufIDs = bufIDs[:0]
		if opts.Progress != nil {
			opts.Progress(added)
		}
		return nil
	}

	seen := 0
	err := source(ctx, func(doc models.Document) error {
		bufIDs = append(bufIDs, doc.ID)
		bufTexts = append(bufTexts, doc.MergedText())
		if len(bufTexts) >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
		seen++
		if opts.Limit > 0 && seen >= opts.Limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return err
	}

	if err := flush(); err != nil {
		return err
	}
	if ix.index == nil {
		return ErrEmptyCorpus
	}

	ix.logger.Info("dense index built",
		zap.Int("vectors", ix.index.Size()),
		zap.Int("dimensions", ix.index.Dimensions()),
		zap.String("kind", ix.index.Kind()),
	)
	return nil
}

// Save writes the three artifacts (serialized index, doc-id list, and
// metadata record) into the index directory. The id-list length, index size,
// and metadata count are always written mutually consistent.
func (ix *Indexer) Save() error {
	if ix.index == nil {
		return ErrNotBuilt
	}
	if err := os.MkdirAll(ix.dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := ix.index.Save(filepath.Join(ix.dir, "index."+ix.index.Kind())); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	f, err := os.Create(filepath.Join(ix.dir, docIDsFile))
	if err != nil {
		return fmt.Errorf("create doc-id file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, id := range ix.docIDs {
		if _, err := w.WriteString(id + "\n"); err != nil {
			_ = f.Close()
			return fmt.Errorf("write doc-id file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush doc-id file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close doc-id file: %w", err)
	}

	meta := Meta{
		Model: ix.embedder.ModelName(),
		Size:  len(ix.docIDs),
		Type:  ix.index.Kind(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ix.dir, metaFile), data, 0644); err != nil {
		return fmt.Errorf("write meta file: %w", err)
	}

	ix.logger.Info("dense index saved",
		zap.String("dir", ix.dir),
		zap.Int("vectors", meta.Size),
	)
	return nil
}

// Load reads the serialized index and doc-id list back from the directory.
// Returns ErrMissingArtifact when either file is absent. The reloaded id-list
// length must match the index size, and when a metadata record is present its
// model must match the configured embedder.
func (ix *Indexer) Load() error {
	idxPath := ix.indexPath()
	idsPath := filepath.Join(ix.dir, docIDsFile)
	for _, path := range []string{idxPath, idsPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, filepath.Base(path))
		}
	}

	if meta, err := ReadMeta(ix.dir); err == nil {
		if meta.Model != ix.embedder.ModelName() {
			return fmt.Errorf("index was built with model %q but embedder is %q", meta.Model, ix.embedder.ModelName())
		}
	}

	kind := ix.config.IndexKind
	idx, err := vector.Load(kind, idxPath)
	if err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}

	docIDs, err := readDocIDs(idsPath)
	if err != nil {
		idx.Close()
		return err
	}
	if len(docIDs) != idx.Size() {
		idx.Close()
		return fmt.Errorf("doc-id list has %d entries but index holds %d vectors", len(docIDs), idx.Size())
	}

	ix.index = idx
	ix.docIDs = docIDs
	return nil
}

func readDocIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open doc-id file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ids = append(ids, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read doc-id file: %w", err)
	}
	return ids, nil
}

// ReadMeta reads the metadata record from an index directory.
func ReadMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return Meta{}, fmt.Errorf("read meta file: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse meta file: %w", err)
	}
	return meta, nil
}

// Exists reports whether the index artifact for the given backend kind is
// present in dir.
func Exists(dir, kind string) bool {
	if kind == "" {
		kind = vector.KindFlat
	}
	_, err := os.Stat(filepath.Join(dir, "index."+kind))
	return err == nil
}

// Size returns the number of indexed vectors, or 0 when nothing is built or
// loaded.
func (ix *Indexer) Size() int {
	if ix.index == nil {
		return 0
	}
	return ix.index.Size()
}

// DocIDs returns the doc-id list in vector append order.
func (ix *Indexer) DocIDs() []string {
	return ix.docIDs
}

// Close releases the underlying vector index.
func (ix *Indexer) Close() error {
	if ix.index == nil {
		return nil
	}
	return ix.index.Close()
}
