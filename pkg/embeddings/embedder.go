// Package embeddings converts memory text into vectors for similarity
// retrieval.
package embeddings

import "context"

// Embedder turns text into a fixed-dimension embedding.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
