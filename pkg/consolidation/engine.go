package consolidation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/eventstream"
	"github.com/loomworks/engram/pkg/llm"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/vector"
)

// Engine arbitrates new candidate memories against the existing store.
type Engine struct {
	store     ChunkStore
	vectors   vector.Driver
	caller    llm.Caller
	publisher eventstream.Publisher
	cfg       Config
	model     string
	logger    *zap.Logger
}

// NewEngine creates a consolidation engine. The publisher may be nil to
// disable decision events. The model name is recorded in audit entries.
func NewEngine(store ChunkStore, vectors vector.Driver, caller llm.Caller, cfg Config, model string, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:   store,
		vectors: vectors,
		caller:  caller,
		cfg:     cfg,
		model:   model,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher attaches a decision event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// ProcessNewChunk runs the full consolidation pipeline for one candidate:
// similarity retrieval, LLM arbitration, safety gating, store mutation, and
// audit logging. The returned Result always carries a non-nil Decision.
//
// The engine never inserts the candidate itself. When ShouldInsert reports
// true for the returned decision, the caller stores the chunk and indexes its
// embedding.
func (e *Engine) ProcessNewChunk(ctx context.Context, chunk *memory.Chunk) (*Result, error) {
	if chunk == nil {
		return nil, fmt.Errorf("cannot process nil chunk")
	}
	if !e.cfg.Enabled {
		return &Result{
			Decision: &Decision{Action: ActionSkip, Reasoning: "consolidation disabled"},
		}, nil
	}
	if strings.TrimSpace(chunk.Text) == "" {
		// Nothing to arbitrate and nothing worth an audit row.
		return &Result{
			Decision: &Decision{Action: ActionSkip, Reasoning: "empty chunk text"},
		}, nil
	}

	candidates, err := e.FindSimilar(ctx, chunk.Embedding)
	if err != nil {
		return nil, fmt.Errorf("finding similar memories: %w", err)
	}

	if len(candidates) == 0 {
		decision := &Decision{
			Action:    ActionKeepSeparate,
			Reasoning: "no similar candidates found",
		}
		if err := e.recordDecision(ctx, chunk, decision, nil); err != nil {
			return nil, err
		}
		return &Result{Decision: decision}, nil
	}

	decision, errTag := e.arbitrate(ctx, chunk, candidates)

	decision = e.applySafetyGates(decision, candidates)

	if err := e.apply(ctx, chunk, decision); err != nil {
		return nil, fmt.Errorf("applying %s decision: %w", decision.Action, err)
	}

	if err := e.recordDecision(ctx, chunk, decision, candidates); err != nil {
		return nil, err
	}

	e.logger.Info("consolidation decision",
		zap.String("action", string(decision.Action)),
		zap.String("area", string(chunk.Area)),
		zap.Int("candidates", len(candidates)),
		zap.String("reasoning", decision.Reasoning),
	)

	return &Result{Decision: decision, Candidates: candidates, Err: errTag}, nil
}

// FindSimilar retrieves existing chunks whose similarity to the embedding
// meets the configured threshold, best match first. An empty embedding
// yields no candidates without hitting the vector index.
func (e *Engine) FindSimilar(ctx context.Context, embedding []float32) ([]Candidate, error) {
	if len(embedding) == 0 {
		// No vector to compare against, so no query to issue.
		return nil, nil
	}

	topK := e.cfg.MaxSimilarMemories
	if topK <= 0 {
		topK = DefaultConfig().MaxSimilarMemories
	}

	results, err := e.vectors.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		score := 1 - r.Distance
		if score < e.cfg.SimilarityThreshold {
			continue
		}

		stored, err := e.store.GetChunk(ctx, r.ID)
		if err != nil {
			// The vector index can briefly lead the chunk store; skip
			// entries it no longer has.
			e.logger.Debug("similar chunk missing from store", zap.String("id", r.ID), zap.Error(err))
			continue
		}

		candidates = append(candidates, Candidate{
			ID:         stored.ID,
			Text:       stored.Text,
			SourcePath: stored.SourcePath,
			Area:       stored.Area,
			Score:      score,
		})
	}

	return candidates, nil
}

// arbitrate asks the model for a decision, bounded by ProcessingTimeout.
// Call failures map to SKIP with a short error tag so the audit log records
// why the candidate was discarded.
func (e *Engine) arbitrate(ctx context.Context, chunk *memory.Chunk, candidates []Candidate) (*Decision, string) {
	timeout := e.cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ProcessingTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	user := buildUserPrompt(chunk.Area, chunk.Text, candidates, e.cfg.MaxLLMContextMemories)

	response, err := e.caller.Call(callCtx, systemPrompt, user, llm.TaskConsolidation)
	if err != nil {
		tag := "llm_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			tag = "timeout"
		}
		e.logger.Warn("arbitration call failed", zap.String("tag", tag), zap.Error(err))
		return &Decision{Action: ActionSkip, Reasoning: tag}, tag
	}

	return ParseDecision(response), ""
}

// applySafetyGates downgrades decisions the numeric evidence does not support.
func (e *Engine) applySafetyGates(decision *Decision, candidates []Candidate) *Decision {
	switch decision.Action {
	case ActionReplace:
		threshold := e.cfg.ReplaceSimilarityThreshold
		if threshold <= 0 {
			threshold = DefaultConfig().ReplaceSimilarityThreshold
		}
		if len(candidates) == 0 || candidates[0].Score < threshold {
			return &Decision{
				Action:    ActionKeepSeparate,
				Reasoning: fmt.Sprintf("downgraded from REPLACE: top similarity below %.2f (%s)", threshold, decision.Reasoning),
			}
		}
		if len(decision.TargetIDs) == 0 || !targetsKnown(decision.TargetIDs, candidates) {
			return &Decision{
				Action:    ActionKeepSeparate,
				Reasoning: fmt.Sprintf("downgraded from REPLACE: unknown target ids (%s)", decision.Reasoning),
			}
		}

	case ActionMerge, ActionUpdate:
		if decision.MergedContent == "" {
			return &Decision{
				Action:    ActionKeepSeparate,
				Reasoning: fmt.Sprintf("downgraded from %s: missing merged content (%s)", decision.Action, decision.Reasoning),
			}
		}
		if len(decision.TargetIDs) == 0 || !targetsKnown(decision.TargetIDs, candidates) {
			return &Decision{
				Action:    ActionKeepSeparate,
				Reasoning: fmt.Sprintf("downgraded from %s: unknown target ids (%s)", decision.Action, decision.Reasoning),
			}
		}
	}

	return decision
}

// targetsKnown reports whether every target id appears in the candidate set.
// The model can only act on chunks it was actually shown.
func targetsKnown(targetIDs []string, candidates []Candidate) bool {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	for _, id := range targetIDs {
		if !known[id] {
			return false
		}
	}
	return true
}

// apply mutates the chunk and vector stores according to the decision.
// Candidate insertion for KEEP_SEPARATE and REPLACE is the caller's job.
func (e *Engine) apply(ctx context.Context, chunk *memory.Chunk, decision *Decision) error {
	switch decision.Action {
	case ActionMerge:
		target := decision.TargetIDs[0]
		// The target keeps its embedding; re-embedding merged text is a caller
		// concern handled out of band.
		return e.store.UpdateChunkText(ctx, target, decision.MergedContent, []string{chunk.ID})

	case ActionUpdate:
		target := decision.TargetIDs[0]
		return e.store.UpdateChunkText(ctx, target, decision.MergedContent, nil)

	case ActionReplace:
		for _, id := range decision.TargetIDs {
			if err := e.store.DeleteChunk(ctx, id); err != nil {
				return fmt.Errorf("deleting chunk %s: %w", id, err)
			}
		}
		if err := e.vectors.Delete(ctx, decision.TargetIDs); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
		return nil

	case ActionKeepSeparate, ActionSkip:
		return nil

	default:
		return fmt.Errorf("unknown action %q", decision.Action)
	}
}

// recordDecision appends the audit log entry and publishes the decision event.
func (e *Engine) recordDecision(ctx context.Context, chunk *memory.Chunk, decision *Decision, candidates []Candidate) error {
	now := time.Now().UTC()

	var resultID *string
	switch decision.Action {
	case ActionMerge, ActionUpdate, ActionReplace:
		id := decision.TargetIDs[0]
		resultID = &id
	case ActionKeepSeparate:
		id := chunk.ID
		resultID = &id
	}

	entry := &memory.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: now.UnixMilli(),
		Action:    string(decision.Action),
		SourceIDs: append([]string{chunk.ID}, decision.TargetIDs...),
		ResultID:  resultID,
		Area:      chunk.Area,
		Model:     e.model,
		Reasoning: decision.Reasoning,
		CreatedAt: now,
	}

	if err := e.store.AppendLogEntry(ctx, entry); err != nil {
		return fmt.Errorf("appending audit log entry: %w", err)
	}

	e.publishDecision(ctx, chunk, decision, candidates, entry)

	return nil
}

// publishDecision emits the decision event. Publishing is best effort and
// never fails the pipeline.
func (e *Engine) publishDecision(ctx context.Context, chunk *memory.Chunk, decision *Decision, candidates []Candidate, entry *memory.LogEntry) {
	if e.publisher == nil {
		return
	}

	var topScore float64
	if len(candidates) > 0 {
		topScore = candidates[0].Score
	}

	event := &eventstream.DecisionRecordedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeDecisionRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     entry.CreatedAt,
		Source: eventstream.EventSource{
			Model: e.model,
		},
		Decision: eventstream.DecisionMeta{
			Action:         string(decision.Action),
			Area:           string(chunk.Area),
			CandidateCount: len(candidates),
			TopScore:       topScore,
			TargetIDs:      decision.TargetIDs,
		},
		Entry: *entry,
	}

	if err := e.publisher.PublishDecision(ctx, event); err != nil {
		e.logger.Warn("publishing decision event failed", zap.Error(err))
	}
}

// Log returns audit entries matching the filter, newest first.
func (e *Engine) Log(ctx context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error) {
	return e.store.QueryLog(ctx, filter)
}
