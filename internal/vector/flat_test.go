package vector

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	matches, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Row != 0 {
		t.Errorf("top match should be row 0, got %d", matches[0].Row)
	}
	if matches[1].Row != 1 {
		t.Errorf("second match should be row 1, got %d", matches[1].Row)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("scores not descending")
	}
}

func TestFlatIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([][]float32{{1, 0}, {0, 1}})
	matches, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Add([][]float32{{1, 0}}); err == nil {
		t.Error("Add with wrong dimension should fail")
	}
	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Error("Search with wrong dimension should fail")
	}
}

func TestFlatIndex_Empty(t *testing.T) {
	idx, _ := NewFlatIndex(4)
	matches, err := idx.Search([]float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if matches != nil {
		t.Errorf("empty index returned matches: %v", matches)
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.flat")
	idx, _ := NewFlatIndex(3)
	vecs := [][]float32{
		{0.5, 0.5, 0},
		{0, 0.3, 0.7},
		{0.1, 0.1, 0.1},
	}
	_ = idx.Add(vecs)
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFlatIndex(path)
	if err != nil {
		t.Fatalf("LoadFlatIndex: %v", err)
	}
	if loaded.Size() != 3 || loaded.Dimensions() != 3 {
		t.Fatalf("loaded size=%d dims=%d", loaded.Size(), loaded.Dimensions())
	}

	query := []float32{0, 0, 1}
	orig, _ := idx.Search(query, 3)
	reload, _ := loaded.Search(query, 3)
	for i := range orig {
		if orig[i].Row != reload[i].Row {
			t.Fatalf("row mismatch at %d: %d vs %d", i, orig[i].Row, reload[i].Row)
		}
		if math.Abs(float64(orig[i].Score-reload[i].Score)) > 1e-6 {
			t.Fatalf("score mismatch at %d", i)
		}
	}
}

func TestLoadFlatIndex_BadFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFlatIndex(filepath.Join(dir, "absent.flat")); err == nil {
		t.Error("loading absent file should fail")
	}

	bad := filepath.Join(dir, "bad.flat")
	if err := os.WriteFile(bad, []byte("not an index"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFlatIndex(bad); err == nil {
		t.Error("loading garbage should fail")
	}
}

func TestLoadFlatIndex_TrailingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.flat")
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([][]float32{{1, 0}})
	_ = idx.Save(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{0xde, 0xad})
	f.Close()

	if _, err := LoadFlatIndex(path); err == nil {
		t.Error("trailing data should be rejected")
	}
}

func TestInnerProduct(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("InnerProduct=%f", got)
	}
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("length mismatch should return 0, got %f", got)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New("annoy", 8); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestNew_DefaultsToFlat(t *testing.T) {
	idx, err := New("", 8)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Kind() != KindFlat {
		t.Errorf("Kind=%s", idx.Kind())
	}
}
