package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomworks/engram/pkg/memory"
)

// ExtractedItem is one candidate memory produced by a strategy.
type ExtractedItem struct {
	Area       memory.Area `json:"area"`
	Text       string      `json:"text"`
	Importance float64     `json:"importance"`
}

// Strategy extracts one category of memory from a transcript.
type Strategy struct {
	// Name identifies the strategy in results and logs.
	Name string

	// Area is the memory area extracted items are stored under.
	Area memory.Area

	system string
	parse  func(response string) []ExtractedItem
}

// Parse turns a raw model response into extracted items. Entries that are
// null, non-objects, or missing required fields are dropped, and a wholly
// unparseable response yields an empty list. A bad response never fails the
// strategy.
func (s Strategy) Parse(response string) []ExtractedItem {
	return s.parse(response)
}

// Strategies returns the three extraction strategies run on every transcript.
func Strategies() []Strategy {
	return []Strategy{solutionsStrategy(), fragmentsStrategy(), instrumentsStrategy()}
}

const solutionsSystemPrompt = `You extract problem/solution pairs from a coding session transcript.
Find concrete problems that were actually solved during the session.
Respond with ONLY a JSON array, no markdown:

[
  {
    "problem": "short description of the problem",
    "solution": "what fixed it",
    "context": "optional surrounding detail worth remembering",
    "importance": 0.7
  }
]

importance is 0.0 to 1.0. Return [] if nothing was solved.`

const fragmentsSystemPrompt = `You extract standalone facts from a coding session transcript.
Find durable facts about the project, its conventions, or the user's preferences.
Respond with ONLY a JSON array, no markdown:

[
  {
    "category": "short category label, e.g. convention, preference, architecture",
    "fact": "the fact itself, phrased to be useful out of context",
    "importance": 0.5
  }
]

importance is 0.0 to 1.0. Return [] if there are no durable facts.`

const instrumentsSystemPrompt = `You extract tools, commands, and APIs that proved useful in a coding session transcript.
Respond with ONLY a JSON array, no markdown:

[
  {
    "type": "tool | command | api | library",
    "name": "the tool or command name",
    "description": "what it was used for and anything non-obvious about using it",
    "importance": 0.5
  }
]

importance is 0.0 to 1.0. Return [] if nothing qualifies.`

type wireSolution struct {
	Problem    string   `json:"problem"`
	Solution   string   `json:"solution"`
	Context    string   `json:"context"`
	Importance *float64 `json:"importance"`
}

type wireFragment struct {
	Category   string   `json:"category"`
	Fact       string   `json:"fact"`
	Importance *float64 `json:"importance"`
}

type wireInstrument struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Importance  *float64 `json:"importance"`
}

func solutionsStrategy() Strategy {
	return Strategy{
		Name:   "solutions",
		Area:   memory.AreaSolutions,
		system: solutionsSystemPrompt,
		parse: func(response string) []ExtractedItem {
			wire := unmarshalArray(response)

			items := make([]ExtractedItem, 0, len(wire))
			for _, raw := range wire {
				var s wireSolution
				if !decodeObject(raw, &s) {
					continue
				}
				if strings.TrimSpace(s.Problem) == "" || strings.TrimSpace(s.Solution) == "" {
					continue
				}

				text := fmt.Sprintf("Problem: %s\nSolution: %s", s.Problem, s.Solution)
				if strings.TrimSpace(s.Context) != "" {
					text += fmt.Sprintf("\nContext: %s", s.Context)
				}

				items = append(items, ExtractedItem{
					Area:       memory.AreaSolutions,
					Text:       text,
					Importance: importanceOf(s.Importance),
				})
			}

			return items
		},
	}
}

func fragmentsStrategy() Strategy {
	return Strategy{
		Name:   "fragments",
		Area:   memory.AreaFragments,
		system: fragmentsSystemPrompt,
		parse: func(response string) []ExtractedItem {
			wire := unmarshalArray(response)

			items := make([]ExtractedItem, 0, len(wire))
			for _, raw := range wire {
				var f wireFragment
				if !decodeObject(raw, &f) {
					continue
				}
				if strings.TrimSpace(f.Fact) == "" {
					continue
				}

				category := strings.TrimSpace(f.Category)
				if category == "" {
					category = "fact"
				}

				items = append(items, ExtractedItem{
					Area:       memory.AreaFragments,
					Text:       fmt.Sprintf("[%s] %s", category, f.Fact),
					Importance: importanceOf(f.Importance),
				})
			}

			return items
		},
	}
}

func instrumentsStrategy() Strategy {
	return Strategy{
		Name:   "instruments",
		Area:   memory.AreaInstruments,
		system: instrumentsSystemPrompt,
		parse: func(response string) []ExtractedItem {
			wire := unmarshalArray(response)

			items := make([]ExtractedItem, 0, len(wire))
			for _, raw := range wire {
				var ins wireInstrument
				if !decodeObject(raw, &ins) {
					continue
				}
				if strings.TrimSpace(ins.Name) == "" || strings.TrimSpace(ins.Description) == "" {
					continue
				}

				kind := strings.TrimSpace(ins.Type)
				if kind == "" {
					kind = "tool"
				}

				items = append(items, ExtractedItem{
					Area:       memory.AreaInstruments,
					Text:       fmt.Sprintf("[%s] %s: %s", kind, ins.Name, ins.Description),
					Importance: importanceOf(ins.Importance),
				})
			}

			return items
		},
	}
}

// unmarshalArray extracts the outermost JSON array from a model response,
// tolerating markdown code fences. A response with no decodable array means
// the model found nothing, so the result is empty rather than an error.
func unmarshalArray(response string) []json.RawMessage {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	if idx := strings.Index(s, "["); idx >= 0 {
		if end := strings.LastIndex(s, "]"); end > idx {
			s = s[idx : end+1]
		}
	}

	var out []json.RawMessage
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}

	return out
}

// decodeObject rejects null and non-object array entries.
func decodeObject(raw json.RawMessage, out any) bool {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// importanceOf resolves the wire importance pointer, defaulting missing
// values and clamping the rest.
func importanceOf(v *float64) float64 {
	if v == nil {
		return memory.DefaultImportance
	}
	return memory.ClampImportance(*v)
}
