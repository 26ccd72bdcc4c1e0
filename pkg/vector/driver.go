// Package vector provides interfaces and helpers for vector storage and
// nearest-neighbor retrieval over chunk embeddings.
package vector

import "context"

// Document represents a stored embedding keyed by chunk id.
type Document struct {
	// ID is the chunk id the embedding belongs to.
	ID string

	// Embedding is the vector representation of the chunk text.
	Embedding []float32
}

// QueryResult represents a nearest-neighbor match.
type QueryResult struct {
	Document

	// Distance is the cosine distance to the query embedding
	// (lower = more similar). Callers derive similarity as 1 - Distance.
	Distance float64
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should
	// update the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK nearest documents to the given embedding,
	// ordered by ascending distance.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
