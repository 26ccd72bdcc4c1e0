// Package storage
package storage

import (
	"context"

	"github.com/loomworks/engram/pkg/memory"
)

// Driver defines the interface for persisting and retrieving memory chunks
// and the append-only consolidation log. Implementations own their own
// transactional discipline; callers assume single-writer-per-row semantics.
type Driver interface {
	// PutChunk inserts a chunk row, or replaces it if the id already exists.
	PutChunk(ctx context.Context, chunk *memory.Chunk) error

	// GetChunk retrieves a chunk by id. Returns ErrNotFound if absent.
	GetChunk(ctx context.Context, id string) (*memory.Chunk, error)

	// UpdateChunkText overwrites a chunk's text in place and appends the
	// absorbed ids to its consolidated_from list. A missing id is a no-op
	// rather than an error; consolidation treats a vanished target as an
	// accepted race.
	UpdateChunkText(ctx context.Context, id, text string, absorbed []string) error

	// DeleteChunk removes a chunk by id. Deleting a missing id is a no-op.
	DeleteChunk(ctx context.Context, id string) error

	// ListChunks returns up to limit chunks, optionally filtered by area,
	// most recently updated first.
	ListChunks(ctx context.Context, area memory.Area, limit int) ([]*memory.Chunk, error)

	// AppendLogEntry appends one consolidation log record. The log is
	// append-only; entries are never mutated or deleted.
	AppendLogEntry(ctx context.Context, entry *memory.LogEntry) error

	// QueryLog returns log entries matching the filter, newest first.
	QueryLog(ctx context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error)

	// Close closes the store and releases any resources.
	Close() error
}
