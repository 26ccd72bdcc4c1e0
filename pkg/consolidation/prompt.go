package consolidation

import (
	"fmt"
	"strings"

	"github.com/loomworks/engram/pkg/memory"
)

// systemPrompt instructs the model to arbitrate between a new memory and the
// similar memories already stored. The response must be a single JSON object.
const systemPrompt = `You are a memory consolidation arbiter for a coding agent's long-term memory store.
You are given a NEW memory and a list of EXISTING memories that are semantically similar to it.
Decide what to do with the new memory. Respond with ONLY a JSON object, no markdown, no extra text:

{
  "action": "MERGE" | "REPLACE" | "KEEP_SEPARATE" | "UPDATE" | "SKIP",
  "target_id": "id of the existing memory the action applies to",
  "new_memory_content": "the combined memory text (MERGE only)",
  "updated_content": "the corrected memory text (UPDATE only)",
  "reasoning": "one sentence explaining the decision"
}

Actions:
- MERGE: the new memory and an existing one describe the same fact; combine them into one better memory. Provide target_id and new_memory_content.
- REPLACE: the new memory supersedes an existing memory that is now wrong or obsolete. Provide target_id.
- KEEP_SEPARATE: the new memory is related but distinct; store it as its own entry.
- UPDATE: an existing memory is mostly right but needs a correction from the new one. Provide target_id and updated_content.
- SKIP: the new memory adds nothing over what is stored; discard it.

Prefer KEEP_SEPARATE when unsure. REPLACE destroys data, so use it only when the existing memory is clearly superseded.`

// buildUserPrompt renders the new memory and up to maxContext candidates.
func buildUserPrompt(area memory.Area, text string, candidates []Candidate, maxContext int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Area: %s\n\nNEW memory:\n%s\n\nEXISTING similar memories:\n", area, text)

	shown := candidates
	if maxContext > 0 && len(shown) > maxContext {
		shown = shown[:maxContext]
	}

	for i, c := range shown {
		fmt.Fprintf(&b, "%d. [id: %s, similarity: %.2f, area: %s]\n%s\n\n", i+1, c.ID, c.Score, c.Area, c.Text)
	}

	return b.String()
}
