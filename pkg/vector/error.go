package vector

import "errors"

var (
	// ErrNotFound is returned when a memory embedding is not in the index.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when generating an embedding fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector index cannot be reached.
	ErrConnection = errors.New("vector store connection failed")
)
