// Package vector provides append-only vector indexes with exact inner-product
// top-k search. Indexes are positional: they store no document IDs, and row
// order is append order. Callers keep their own row-to-ID mapping.
package vector

import "fmt"

// Match is a single similarity hit. Row is the append position of the matched
// vector; callers map it back to their own ID space. Backends may report
// sentinel rows outside the valid range when fewer results exist than
// requested; callers must drop those.
type Match struct {
	Row   int
	Score float32
}

// Index defines an append-only vector collection with exact inner-product
// search and file persistence.
type Index interface {
	// Add appends vectors in order. All vectors must match the index dimension.
	Add(vectors [][]float32) error
	// Search returns up to k matches ordered by descending score.
	Search(query []float32, k int) ([]Match, error)
	Save(path string) error
	Size() int
	Dimensions() int
	// Kind returns the backend tag recorded in index metadata.
	Kind() string
	Close() error
}

// Index kinds.
const (
	KindFlat  = "flat"
	KindFAISS = "faiss"
)

// New creates an empty index of the given kind and dimension.
// FAISS requires building with -tags=faiss and the faiss_c library installed.
func New(kind string, dimensions int) (Index, error) {
	switch kind {
	case KindFlat, "":
		return NewFlatIndex(dimensions)
	case KindFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index kind: %s (supported: flat, faiss)", kind)
	}
}

// Load reads a previously saved index of the given kind from path.
func Load(kind string, path string) (Index, error) {
	switch kind {
	case KindFlat, "":
		return LoadFlatIndex(path)
	case KindFAISS:
		return LoadFAISSIndex(path)
	default:
		return nil, fmt.Errorf("unknown index kind: %s (supported: flat, faiss)", kind)
	}
}
