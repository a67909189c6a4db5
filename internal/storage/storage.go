// Package storage provides document stores for the FEVER corpus.
package storage

import (
	"context"

	"github.com/mosaiclab/unisearch/internal/models"
)

// DocStore holds the corpus and serves lookups by doc ID. Iterate visits
// documents in insertion order, which keeps dense index builds deterministic.
type DocStore interface {
	Put(ctx context.Context, docs []models.Document) error
	Get(ctx context.Context, id string) (models.Document, bool, error)
	Count(ctx context.Context) (int, error)
	Iterate(ctx context.Context, fn func(models.Document) error) error
	Close() error
}
