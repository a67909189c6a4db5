// Package embedding provides text embedding backends for dense retrieval.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are
// deterministic for a fixed model and input, but make no promise about vector
// norm; callers that need unit vectors must normalize explicitly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName identifies the model for the persisted index metadata.
	ModelName() string
	Close() error
}
