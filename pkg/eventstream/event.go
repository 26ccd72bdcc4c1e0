package eventstream

import (
	"time"

	"github.com/loomworks/engram/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDecisionRecorded is emitted after a consolidation decision is
	// applied and its audit log entry written.
	EventTypeDecisionRecorded = "engram.decision.recorded"
)

// DecisionRecordedEvent is a transport-neutral event payload for a recorded
// consolidation decision.
type DecisionRecordedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	Decision      DecisionMeta    `json:"decision"`
	Entry         memory.LogEntry `json:"entry"`
}

// EventSource identifies where the decision originated.
type EventSource struct {
	Project  string `json:"project,omitempty"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// DecisionMeta captures the arbitration outcome for the event.
type DecisionMeta struct {
	Action         string   `json:"action"`
	Area           string   `json:"area"`
	CandidateCount int      `json:"candidate_count"`
	TopScore       float64  `json:"top_score,omitempty"`
	TargetIDs      []string `json:"target_ids,omitempty"`
}
