// Package extraction turns session transcripts into candidate memories by
// running several LLM extraction strategies in parallel and handing each
// extracted item to the memory store.
package extraction

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// minPartialChars is the smallest tail of a message worth keeping when the
// transcript budget truncates mid-message.
const minPartialChars = 20

// Message is a single conversational turn from a transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReadTranscript parses a JSONL transcript file, keeping only non-empty user
// and assistant messages. Malformed lines are skipped rather than failing the
// whole file.
func ReadTranscript(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	var messages []Message

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}

		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}

		messages = append(messages, msg)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	return messages, nil
}

// BuildTranscript renders messages newest-last into a "role: content" text
// block capped at maxChars. When the budget runs out, the most recent
// messages win: older ones are dropped, and the oldest surviving message may
// be truncated from the front with a "..." marker if enough of it remains.
func BuildTranscript(messages []Message, maxChars int) string {
	if len(messages) == 0 {
		return ""
	}

	rendered := make([]string, len(messages))
	for i, msg := range messages {
		rendered[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
	}

	if maxChars <= 0 {
		return strings.Join(rendered, "\n")
	}

	// Walk backwards keeping whole messages while they fit.
	total := 0
	start := len(rendered)
	for i := len(rendered) - 1; i >= 0; i-- {
		cost := len(rendered[i])
		if total > 0 {
			cost++ // newline
		}
		if total+cost > maxChars {
			break
		}
		total += cost
		start = i
	}

	parts := rendered[start:]

	// Try to salvage a tail of the first message that didn't fit.
	if start > 0 {
		remaining := maxChars - total
		if total > 0 {
			remaining-- // newline joining the partial to the rest
		}
		partialBudget := remaining - len("...")
		if partialBudget >= minPartialChars {
			prev := rendered[start-1]
			partial := "..." + prev[len(prev)-partialBudget:]
			parts = append([]string{partial}, parts...)
		}
	}

	return strings.Join(parts, "\n")
}
