package storage

import (
	"context"

	"github.com/mosaiclab/unisearch/internal/models"
)

// MemoryStore is an in-memory DocStore. Suitable for tests and small corpora.
type MemoryStore struct {
	byID  map[string]models.Document
	order []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Document)}
}

// Put inserts documents. A document with an already known ID replaces the
// previous one without changing its position.
func (m *MemoryStore) Put(ctx context.Context, docs []models.Document) error {
	for _, doc := range docs {
		if _, ok := m.byID[doc.ID]; !ok {
			m.order = append(m.order, doc.ID)
		}
		m.byID[doc.ID] = doc
	}
	return nil
}

// Get returns the document with the given ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (models.Document, bool, error) {
	doc, ok := m.byID[id]
	return doc, ok, nil
}

// Count returns the number of stored documents.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	return len(m.order), nil
}

// Iterate visits documents in insertion order.
func (m *MemoryStore) Iterate(ctx context.Context, fn func(models.Document) error) error {
	for _, id := range m.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m.byID[id]); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
