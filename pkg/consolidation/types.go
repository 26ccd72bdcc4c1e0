// Package consolidation implements the decision engine that keeps the memory
// store deduplicated. Each new candidate memory is compared against existing
// chunks by vector similarity, and an LLM arbitrates whether it should be
// merged into, replace, or live alongside what is already stored. Every
// decision is recorded in an append-only audit log.
package consolidation

import (
	"context"
	"time"

	"github.com/loomworks/engram/pkg/memory"
)

// Action is the consolidation decision for a candidate memory.
type Action string

const (
	// ActionMerge combines the candidate into an existing chunk.
	ActionMerge Action = "MERGE"

	// ActionReplace deletes one or more existing chunks in favor of the candidate.
	ActionReplace Action = "REPLACE"

	// ActionKeepSeparate stores the candidate as a new chunk.
	ActionKeepSeparate Action = "KEEP_SEPARATE"

	// ActionUpdate rewrites an existing chunk's text in place.
	ActionUpdate Action = "UPDATE"

	// ActionSkip discards the candidate without touching the store.
	ActionSkip Action = "SKIP"
)

// ValidAction reports whether a is one of the five known actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionMerge, ActionReplace, ActionKeepSeparate, ActionUpdate, ActionSkip:
		return true
	}
	return false
}

// Decision is the outcome of arbitrating one candidate memory.
type Decision struct {
	Action Action `json:"action"`

	// TargetIDs are the existing chunk ids the action applies to.
	// Empty for KEEP_SEPARATE and SKIP.
	TargetIDs []string `json:"target_ids,omitempty"`

	// MergedContent is the rewritten chunk text for MERGE and UPDATE.
	MergedContent string `json:"merged_content,omitempty"`

	// Reasoning is the model's explanation, preserved verbatim in the audit log.
	Reasoning string `json:"reasoning"`
}

// Candidate is an existing chunk retrieved as similar to the new memory.
type Candidate struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	SourcePath string      `json:"source_path,omitempty"`
	Area       memory.Area `json:"area"`

	// Score is cosine similarity in [0, 1], higher is closer.
	Score float64 `json:"score"`
}

// Result bundles the decision with the retrieval context that produced it.
type Result struct {
	Decision   *Decision   `json:"decision"`
	Candidates []Candidate `json:"candidates,omitempty"`

	// Err carries a short failure tag ("timeout", "llm_error") when the
	// decision is a forced SKIP. Empty on clean decisions.
	Err string `json:"error,omitempty"`
}

// Config holds the engine's tuning knobs.
type Config struct {
	// Enabled turns the whole pipeline on. A disabled engine returns SKIP
	// without touching the store, the vector index, or the model.
	Enabled bool

	// SimilarityThreshold is the minimum cosine similarity for an existing
	// chunk to be considered a consolidation candidate.
	SimilarityThreshold float64

	// ReplaceSimilarityThreshold is the minimum top-candidate similarity
	// required before a REPLACE decision is allowed to destroy data.
	ReplaceSimilarityThreshold float64

	// MaxSimilarMemories caps the vector search result size.
	MaxSimilarMemories int

	// MaxLLMContextMemories caps how many candidates are shown to the model.
	MaxLLMContextMemories int

	// ProcessingTimeout bounds a single arbitration call.
	ProcessingTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                    true,
		SimilarityThreshold:        0.7,
		ReplaceSimilarityThreshold: 0.9,
		MaxSimilarMemories:         10,
		MaxLLMContextMemories:      5,
		ProcessingTimeout:          60 * time.Second,
	}
}

// ShouldInsert reports whether the caller should insert the candidate chunk
// after the decision is applied. MERGE and UPDATE fold the candidate into an
// existing chunk, and SKIP discards it; only KEEP_SEPARATE and REPLACE leave
// the candidate to be stored as its own chunk.
func ShouldInsert(d *Decision) bool {
	if d == nil {
		return false
	}
	return d.Action == ActionKeepSeparate || d.Action == ActionReplace
}

// ChunkStore is the narrow storage surface the engine needs.
type ChunkStore interface {
	GetChunk(ctx context.Context, id string) (*memory.Chunk, error)
	UpdateChunkText(ctx context.Context, id, text string, absorbed []string) error
	DeleteChunk(ctx context.Context, id string) error
	AppendLogEntry(ctx context.Context, entry *memory.LogEntry) error
	QueryLog(ctx context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error)
}
