// Package memory defines the core domain types of the engram system: the
// persisted memory chunk, its fixed area partition, and the append-only
// consolidation log entry.
//
// A Chunk is a distilled unit of semantic memory — text plus its embedding
// and metadata — not a raw conversation message. Chunks are created by the
// extraction orchestrator or by direct memorization, mutated in place by
// MERGE/UPDATE consolidation decisions, and deleted by REPLACE.
package memory

import (
	"math"
	"time"
)

// Area is the fixed-category partition of memory.
type Area string

const (
	AreaMain        Area = "main"
	AreaFragments   Area = "fragments"
	AreaSolutions   Area = "solutions"
	AreaInstruments Area = "instruments"
)

// DefaultImportance is assigned when a chunk carries no usable importance.
const DefaultImportance = 0.5

// Areas lists every valid area value.
func Areas() []Area {
	return []Area{AreaMain, AreaFragments, AreaSolutions, AreaInstruments}
}

// ValidArea reports whether a is one of the four fixed area values.
func ValidArea(a Area) bool {
	switch a {
	case AreaMain, AreaFragments, AreaSolutions, AreaInstruments:
		return true
	}
	return false
}

// NormalizeArea maps unknown or empty areas to AreaMain.
func NormalizeArea(a Area) Area {
	if ValidArea(a) {
		return a
	}
	return AreaMain
}

// ClampImportance forces v into [0,1]. Non-finite values map to
// DefaultImportance.
func ClampImportance(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultImportance
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Chunk is a persisted unit of semantic memory.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`

	// Area is always one of the four fixed values.
	Area Area `json:"area"`

	// Importance is a [0,1] retrieval weight.
	Importance float64 `json:"importance"`

	// ConsolidatedFrom lists ids of chunks absorbed into this row by
	// MERGE/UPDATE decisions.
	ConsolidatedFrom []string `json:"consolidated_from,omitempty"`

	// SourcePath identifies where the chunk came from (session id,
	// transcript path, or "direct").
	SourcePath string `json:"source_path,omitempty"`

	// Model tags the model involved in producing the chunk.
	Model string `json:"model,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is one append-only consolidation audit record. Entries are never
// mutated or deleted; one entry is written per decision that reaches the
// arbitration stage.
type LogEntry struct {
	ID string `json:"id"`

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Action is one of MERGE, REPLACE, KEEP_SEPARATE, UPDATE, SKIP.
	Action string `json:"action"`

	// SourceIDs holds the new chunk id plus any involved existing ids.
	SourceIDs []string `json:"source_ids"`

	// ResultID is the surviving/affected chunk id, when any.
	ResultID *string `json:"result_id,omitempty"`

	Area      Area      `json:"area"`
	Model     string    `json:"model,omitempty"`
	Reasoning string    `json:"reasoning"`
	CreatedAt time.Time `json:"created_at"`
}

// LogFilter narrows a consolidation log query. Zero values mean "no
// constraint"; Limit of zero falls back to the store default.
type LogFilter struct {
	Area   Area
	Action string
	Since  int64
	Limit  int
}
