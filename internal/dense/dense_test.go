package dense

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaiclab/unisearch/internal/embedding"
	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/vector"
)

func testCorpus() []models.Document {
	return []models.Document{
		{ID: "doc1", Title: "Albert Einstein", Body: "Albert Einstein was a German physicist."},
		{ID: "doc2", Title: "Marie Curie", Body: "Marie Curie conducted pioneering research on radioactivity."},
		{ID: "doc3", Title: "Kyoto", Body: "Kyoto was formerly the imperial capital of Japan."},
		{ID: "doc4", Title: "Photosynthesis", Body: "Photosynthesis converts light energy into chemical energy."},
		{ID: "doc5", Title: "Mount Everest", Body: "Mount Everest is Earth's highest mountain above sea level."},
	}
}

func buildIndexer(t *testing.T, dir string, opts BuildOptions) *Indexer {
	t.Helper()
	ix := NewIndexer(dir, embedding.NewMockEmbedder(32), Config{}, nil)
	if err := ix.Build(context.Background(), FromSlice(testCorpus()), opts); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func hitsEqual(t *testing.T, a, b []models.Hit) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("hit counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].DocID != b[i].DocID {
			t.Fatalf("hit %d doc mismatch: %s vs %s", i, a[i].DocID, b[i].DocID)
		}
		if math.Abs(a[i].Score-b[i].Score) > 1e-6 {
			t.Fatalf("hit %d score mismatch: %f vs %f", i, a[i].Score, b[i].Score)
		}
	}
}

func TestBuildSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ix := buildIndexer(t, dir, BuildOptions{})

	inMemory, err := SearcherOver(ix)
	if err != nil {
		t.Fatal(err)
	}
	before, err := inMemory.Search(ctx, "famous physicist", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(before))
	}

	if err := ix.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewSearcher(dir, embedding.NewMockEmbedder(32), Config{}, nil)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	defer reloaded.Close()

	after, err := reloaded.Search(ctx, "famous physicist", 3)
	if err != nil {
		t.Fatal(err)
	}
	hitsEqual(t, before, after)
}

func TestBuild_OrderInvariant(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndexer(t, dir, BuildOptions{})
	if len(ix.DocIDs()) != ix.Size() {
		t.Fatalf("doc-id list has %d entries, index has %d vectors", len(ix.DocIDs()), ix.Size())
	}
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}

	loaded := NewIndexer(dir, embedding.NewMockEmbedder(32), Config{}, nil)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()
	if len(loaded.DocIDs()) != loaded.Size() {
		t.Fatalf("after load: %d ids, %d vectors", len(loaded.DocIDs()), loaded.Size())
	}
	for i, doc := range testCorpus() {
		if loaded.DocIDs()[i] != doc.ID {
			t.Fatalf("doc-id order changed: %v", loaded.DocIDs())
		}
	}
}

func TestSearch_TopKBound(t *testing.T) {
	ix := buildIndexer(t, t.TempDir(), BuildOptions{})
	s, err := SearcherOver(ix)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	hits, err := s.Search(ctx, "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("k=3: got %d hits", len(hits))
	}

	hits, err = s.Search(ctx, "anything", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 5 {
		t.Errorf("k=50 over 5 docs: got %d hits", len(hits))
	}
}

func TestSearch_ScoresDescending(t *testing.T) {
	ix := buildIndexer(t, t.TempDir(), BuildOptions{})
	s, _ := SearcherOver(ix)
	hits, err := s.Search(context.Background(), "capital of Japan", 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not non-increasing: %v", hits)
		}
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	ix := NewIndexer(dir, embedding.NewMockEmbedder(16), Config{}, nil)
	err := ix.Build(context.Background(), FromSlice(nil), BuildOptions{})
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}

	if err := ix.Save(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt from Save, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Save after failed build wrote files: %v", entries)
	}
}

func TestBuild_ChunkingTransparency(t *testing.T) {
	ctx := context.Background()
	one := buildIndexer(t, t.TempDir(), BuildOptions{ChunkSize: 1})
	big := buildIndexer(t, t.TempDir(), BuildOptions{ChunkSize: 8192})

	idsOne, idsBig := one.DocIDs(), big.DocIDs()
	if len(idsOne) != len(idsBig) {
		t.Fatalf("doc counts differ: %d vs %d", len(idsOne), len(idsBig))
	}
	for i := range idsOne {
		if idsOne[i] != idsBig[i] {
			t.Fatalf("doc-id order differs at %d: %s vs %s", i, idsOne[i], idsBig[i])
		}
	}

	sOne, _ := SearcherOver(one)
	sBig, _ := SearcherOver(big)
	hitsOne, err := sOne.Search(ctx, "mountain", 5)
	if err != nil {
		t.Fatal(err)
	}
	hitsBig, err := sBig.Search(ctx, "mountain", 5)
	if err != nil {
		t.Fatal(err)
	}
	hitsEqual(t, hitsOne, hitsBig)
}

func TestBuild_Limit(t *testing.T) {
	ix := NewIndexer(t.TempDir(), embedding.NewMockEmbedder(16), Config{}, nil)
	if err := ix.Build(context.Background(), FromSlice(testCorpus()), BuildOptions{Limit: 2}); err != nil {
		t.Fatal(err)
	}
	if ix.Size() != 2 {
		t.Errorf("Size=%d, want 2", ix.Size())
	}
	want := []string{"doc1", "doc2"}
	for i, id := range ix.DocIDs() {
		if id != want[i] {
			t.Errorf("DocIDs=%v", ix.DocIDs())
		}
	}
}

func TestSave_ArtifactConsistency(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndexer(t, dir, BuildOptions{})
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}

	ids, err := readDocIDs(filepath.Join(dir, docIDsFile))
	if err != nil {
		t.Fatal(err)
	}
	meta, err := ReadMeta(dir)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.LoadFlatIndex(filepath.Join(dir, "index.flat"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if len(ids) != idx.Size() || idx.Size() != meta.Size {
		t.Fatalf("artifact counts disagree: ids=%d index=%d meta=%d", len(ids), idx.Size(), meta.Size)
	}
	if meta.Model != "mock" {
		t.Errorf("meta model=%q", meta.Model)
	}
	if meta.Type != vector.KindFlat {
		t.Errorf("meta type=%q", meta.Type)
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	ix := NewIndexer(dir, embedding.NewMockEmbedder(16), Config{}, nil)
	if err := ix.Load(); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("empty dir: expected ErrMissingArtifact, got %v", err)
	}

	// Index file present but doc-id list absent.
	built := buildIndexer(t, dir, BuildOptions{ChunkSize: 2})
	if err := built.Save(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, docIDsFile)); err != nil {
		t.Fatal(err)
	}
	fresh := NewIndexer(dir, embedding.NewMockEmbedder(32), Config{}, nil)
	if err := fresh.Load(); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("missing docids: expected ErrMissingArtifact, got %v", err)
	}
}

// renamedEmbedder reports a different model name than the mock it wraps.
type renamedEmbedder struct {
	*embedding.MockEmbedder
	name string
}

func (r *renamedEmbedder) ModelName() string { return r.name }

func TestLoad_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndexer(t, dir, BuildOptions{})
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}

	other := &renamedEmbedder{MockEmbedder: embedding.NewMockEmbedder(32), name: "other-model"}
	fresh := NewIndexer(dir, other, Config{}, nil)
	if err := fresh.Load(); err == nil {
		t.Fatal("expected model mismatch error")
	}
}

func TestLoad_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndexer(t, dir, BuildOptions{})
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}

	// Drop one line from the doc-id list so it disagrees with the index.
	if err := os.WriteFile(filepath.Join(dir, docIDsFile), []byte("doc1\ndoc2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fresh := NewIndexer(dir, embedding.NewMockEmbedder(32), Config{}, nil)
	if err := fresh.Load(); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndexer(t, dir, BuildOptions{})
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}

	// Same model name, different dimensionality: Load succeeds but Search
	// must reject the query vector.
	s, err := NewSearcher(dir, embedding.NewMockEmbedder(8), Config{}, nil)
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	defer s.Close()
	if _, err := s.Search(context.Background(), "query", 3); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

// oorIndex reports rows outside the doc-id list, as FAISS does via -1
// sentinels when it holds fewer results than requested.
type oorIndex struct {
	vector.Index
}

func (o *oorIndex) Dimensions() int { return 4 }

func (o *oorIndex) Search(query []float32, k int) ([]vector.Match, error) {
	return []vector.Match{
		{Row: 0, Score: 0.9},
		{Row: -1, Score: 0},
		{Row: 7, Score: -0.1},
	}, nil
}

func TestSearch_DropsOutOfRangeRows(t *testing.T) {
	ix := NewIndexer(t.TempDir(), embedding.NewMockEmbedder(4), Config{}, nil)
	ix.index = &oorIndex{}
	ix.docIDs = []string{"doc1"}

	s, err := SearcherOver(ix)
	if err != nil {
		t.Fatal(err)
	}
	hits, err := s.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].DocID != "doc1" {
		t.Fatalf("out-of-range rows not dropped: %v", hits)
	}
}

func TestBuild_ProgressCallback(t *testing.T) {
	var total int
	ix := NewIndexer(t.TempDir(), embedding.NewMockEmbedder(8), Config{}, nil)
	err := ix.Build(context.Background(), FromSlice(testCorpus()), BuildOptions{
		ChunkSize: 2,
		Progress:  func(added int) { total += added },
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("progress reported %d docs, want 5", total)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir, "") {
		t.Error("Exists on empty dir")
	}
	ix := buildIndexer(t, dir, BuildOptions{})
	if err := ix.Save(); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir, vector.KindFlat) {
		t.Error("Exists false after Save")
	}
}
