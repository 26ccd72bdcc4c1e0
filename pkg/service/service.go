// Package service wires the embedder, vector store, chunk store, and
// consolidation engine into the memory operations shared by the CLI, the REST
// API, and the MCP server.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/consolidation"
	"github.com/loomworks/engram/pkg/embeddings"
	"github.com/loomworks/engram/pkg/eventstream"
	"github.com/loomworks/engram/pkg/extraction"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/storage"
	"github.com/loomworks/engram/pkg/vector"
)

// Service exposes the memory store operations.
type Service struct {
	store        storage.Driver
	vectors      vector.Driver
	embedder     embeddings.Embedder
	engine       *consolidation.Engine
	orchestrator *extraction.Orchestrator
	publisher    eventstream.Publisher
	model        string
	logger       *zap.Logger
}

// New creates a Service. The orchestrator may be nil when extraction is
// disabled; Memorize then reports extraction as disabled.
func New(
	store storage.Driver,
	vectors vector.Driver,
	embedder embeddings.Embedder,
	engine *consolidation.Engine,
	model string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		engine:   engine,
		model:    model,
		logger:   logger,
	}
}

// SetOrchestrator attaches the extraction orchestrator. Called after New
// because the orchestrator's storer is the service itself.
func (s *Service) SetOrchestrator(o *extraction.Orchestrator) {
	s.orchestrator = o
}

// SetPublisher hands the decision event publisher to the service so Close
// releases it alongside the stores.
func (s *Service) SetPublisher(p eventstream.Publisher) {
	s.publisher = p
}

// RememberResult is the outcome of one trip through the consolidation
// pipeline. ChunkID is the id of the new candidate chunk; Stored reports
// whether it was inserted as its own row.
type RememberResult struct {
	*consolidation.Result

	ChunkID string `json:"chunk_id"`
	Stored  bool   `json:"stored"`
}

// Remember runs one candidate memory through the consolidation pipeline and,
// when the decision calls for it, stores the chunk and indexes its embedding.
func (s *Service) Remember(ctx context.Context, text string, area memory.Area, importance float64, sourcePath string) (*RememberResult, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding memory: %w", err)
	}

	chunk := &memory.Chunk{
		ID:         uuid.NewString(),
		Text:       text,
		Embedding:  embedding,
		Area:       memory.NormalizeArea(area),
		Importance: memory.ClampImportance(importance),
		SourcePath: sourcePath,
		Model:      s.model,
		UpdatedAt:  time.Now().UTC(),
	}

	result, err := s.engine.ProcessNewChunk(ctx, chunk)
	if err != nil {
		return nil, err
	}

	stored := false
	if consolidation.ShouldInsert(result.Decision) {
		if err := s.store.PutChunk(ctx, chunk); err != nil {
			return nil, fmt.Errorf("storing chunk: %w", err)
		}
		if err := s.vectors.Add(ctx, []vector.Document{{ID: chunk.ID, Embedding: embedding}}); err != nil {
			return nil, fmt.Errorf("indexing chunk: %w", err)
		}
		stored = true
	}

	return &RememberResult{
		Result:  result,
		ChunkID: chunk.ID,
		Stored:  stored,
	}, nil
}

// Store implements extraction.Storer so the orchestrator feeds extracted
// items straight into the consolidation pipeline.
func (s *Service) Store(ctx context.Context, item extraction.ExtractedItem, sourcePath string) error {
	_, err := s.Remember(ctx, item.Text, item.Area, item.Importance, sourcePath)
	return err
}

// Memorize extracts memories from a transcript. Returns (nil, nil) when
// extraction is disabled.
func (s *Service) Memorize(ctx context.Context, transcriptPath string) (*extraction.AutoMemorizeResult, error) {
	if s.orchestrator == nil {
		return nil, nil
	}
	return s.orchestrator.RunAutoMemorize(ctx, transcriptPath)
}

// SearchResult is one semantic search hit.
type SearchResult struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Area       memory.Area `json:"area"`
	Importance float64     `json:"importance"`
	SourcePath string      `json:"source_path,omitempty"`

	// Score is cosine similarity in [0, 1].
	Score float64 `json:"score"`
}

// Search embeds the query and returns the closest stored chunks, best first.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.vectors.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.store.GetChunk(ctx, hit.ID)
		if err != nil {
			s.logger.Warn("search hit missing from chunk store",
				zap.String("id", hit.ID),
				zap.Error(err),
			)
			continue
		}

		results = append(results, SearchResult{
			ID:         chunk.ID,
			Text:       chunk.Text,
			Area:       chunk.Area,
			Importance: chunk.Importance,
			SourcePath: chunk.SourcePath,
			Score:      1 - hit.Distance,
		})
	}

	return results, nil
}

// GetChunk returns a stored chunk by id.
func (s *Service) GetChunk(ctx context.Context, id string) (*memory.Chunk, error) {
	return s.store.GetChunk(ctx, id)
}

// ListChunks returns stored chunks, most recently updated first.
func (s *Service) ListChunks(ctx context.Context, area memory.Area, limit int) ([]*memory.Chunk, error) {
	return s.store.ListChunks(ctx, area, limit)
}

// Log returns consolidation audit entries matching the filter, newest first.
func (s *Service) Log(ctx context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error) {
	return s.engine.Log(ctx, filter)
}

// Close releases the underlying stores, embedder, and event publisher.
func (s *Service) Close() error {
	var firstErr error
	if err := s.vectors.Close(); err != nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
