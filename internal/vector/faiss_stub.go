//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "fmt"

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, fmt.Errorf("FAISS not available: build with -tags=faiss and install the faiss_c library")
}

// LoadFAISSIndex returns an error because FAISS is not available.
func LoadFAISSIndex(path string) (*FAISSIndex, error) {
	return nil, fmt.Errorf("FAISS not available: build with -tags=faiss and install the faiss_c library")
}

// Add is not implemented without FAISS.
func (f *FAISSIndex) Add(vectors [][]float32) error {
	return fmt.Errorf("FAISS not available")
}

// Search is not implemented without FAISS.
func (f *FAISSIndex) Search(query []float32, k int) ([]Match, error) {
	return nil, fmt.Errorf("FAISS not available")
}

// Save is not implemented without FAISS.
func (f *FAISSIndex) Save(path string) error {
	return fmt.Errorf("FAISS not available")
}

// Size returns 0 without FAISS.
func (f *FAISSIndex) Size() int {
	return 0
}

// Dimensions returns 0 without FAISS.
func (f *FAISSIndex) Dimensions() int {
	return 0
}

// Kind returns the index kind tag.
func (f *FAISSIndex) Kind() string {
	return KindFAISS
}

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error {
	return nil
}
