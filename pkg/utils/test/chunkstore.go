package testutils

import (
	"context"
	"sort"
	"sync"

	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/storage"
)

// MockChunkStore is an in-memory chunk and log store that records mutations
// for assertions.
type MockChunkStore struct {
	mu sync.Mutex

	Chunks  map[string]*memory.Chunk
	Entries []*memory.LogEntry

	// UpdatedIDs and DeletedIDs record mutation order.
	UpdatedIDs []string
	DeletedIDs []string

	// FailAppendLog causes AppendLogEntry to return this error.
	FailAppendLog error
}

func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{
		Chunks: make(map[string]*memory.Chunk),
	}
}

func (m *MockChunkStore) PutChunk(_ context.Context, chunk *memory.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Chunks[chunk.ID] = chunk
	return nil
}

func (m *MockChunkStore) GetChunk(_ context.Context, id string) (*memory.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.Chunks[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	return chunk, nil
}

func (m *MockChunkStore) UpdateChunkText(_ context.Context, id, text string, absorbed []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.Chunks[id]
	if !ok {
		return nil
	}
	chunk.Text = text
	chunk.ConsolidatedFrom = append(chunk.ConsolidatedFrom, absorbed...)
	m.UpdatedIDs = append(m.UpdatedIDs, id)
	return nil
}

func (m *MockChunkStore) DeleteChunk(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Chunks, id)
	m.DeletedIDs = append(m.DeletedIDs, id)
	return nil
}

func (m *MockChunkStore) ListChunks(_ context.Context, area memory.Area, limit int) ([]*memory.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunks := make([]*memory.Chunk, 0, len(m.Chunks))
	for _, chunk := range m.Chunks {
		if area != "" && chunk.Area != area {
			continue
		}
		chunks = append(chunks, chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].UpdatedAt.After(chunks[j].UpdatedAt)
	})

	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}

	return chunks, nil
}

func (m *MockChunkStore) AppendLogEntry(_ context.Context, entry *memory.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppendLog != nil {
		return m.FailAppendLog
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockChunkStore) QueryLog(_ context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*memory.LogEntry, 0, len(m.Entries))
	for _, entry := range m.Entries {
		if filter.Area != "" && entry.Area != filter.Area {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Since > 0 && entry.Timestamp < filter.Since {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}

	return entries, nil
}

func (m *MockChunkStore) Close() error {
	return nil
}
