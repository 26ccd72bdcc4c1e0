package consolidation

import (
	"encoding/json"
	"strings"
)

const defaultReasoning = "no reasoning provided"

// wireDecision mirrors the JSON shape the model is asked to produce. MERGE
// carries its rewritten text in new_memory_content, UPDATE in updated_content.
type wireDecision struct {
	Action           string `json:"action"`
	TargetID         string `json:"target_id"`
	NewMemoryContent string `json:"new_memory_content"`
	UpdatedContent   string `json:"updated_content"`
	Reasoning        string `json:"reasoning"`
}

// ParseDecision turns a raw model response into a Decision. It never returns
// an error: anything that cannot be parsed into a known action falls back to
// KEEP_SEPARATE, the safe default, with "fallback" noted in the reasoning.
func ParseDecision(response string) *Decision {
	jsonStr := extractJSON(response)

	var wire wireDecision
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return fallbackDecision("fallback: unparseable model response")
	}

	action := Action(strings.ToUpper(strings.TrimSpace(wire.Action)))
	if !ValidAction(action) {
		return fallbackDecision("fallback: unknown action " + wire.Action)
	}

	reasoning := strings.TrimSpace(wire.Reasoning)
	if reasoning == "" {
		reasoning = defaultReasoning
	}

	var targets []string
	if id := strings.TrimSpace(wire.TargetID); id != "" {
		targets = []string{id}
	}

	content := wire.NewMemoryContent
	if content == "" {
		content = wire.UpdatedContent
	}

	return &Decision{
		Action:        action,
		TargetIDs:     targets,
		MergedContent: content,
		Reasoning:     reasoning,
	}
}

func fallbackDecision(reasoning string) *Decision {
	return &Decision{
		Action:    ActionKeepSeparate,
		Reasoning: reasoning,
	}
}

// extractJSON strips markdown code fences and returns the outermost JSON
// object in the response, if any.
func extractJSON(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	if idx := strings.Index(s, "{"); idx >= 0 {
		if end := strings.LastIndex(s, "}"); end > idx {
			return s[idx : end+1]
		}
	}

	return s
}
