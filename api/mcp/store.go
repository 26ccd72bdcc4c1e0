package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/engram/pkg/memory"
)

var (
	storeToolName    = "memory_store"
	storeDescription = "Store a new memory in the persistent memory store. The memory runs through deduplication first, so near-duplicates of existing memories may be merged or skipped rather than stored verbatim. Returns the decision that was made."
)

// StoreInput represents the input arguments for the memory_store tool.
type StoreInput struct {
	Text       string   `json:"text" jsonschema:"the memory text to store"`
	Area       string   `json:"area,omitempty" jsonschema:"memory area: main, fragments, solutions, or instruments (default: main)"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"retrieval weight between 0 and 1 (default: 0.5)"`
}

// StoreOutput represents the structured output of a store request.
type StoreOutput struct {
	Action    string `json:"action"`
	Reasoning string `json:"reasoning"`
	ChunkID   string `json:"chunk_id"`
	Stored    bool   `json:"stored"`
}

// handleStore processes a memory store request via MCP.
func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, StoreOutput, error) {
	if input.Text == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "text is required"},
			},
		}, StoreOutput{}, nil
	}

	importance := memory.DefaultImportance
	if input.Importance != nil {
		importance = *input.Importance
	}

	result, err := s.config.Service.Remember(
		ctx,
		input.Text,
		memory.NormalizeArea(memory.Area(input.Area)),
		importance,
		"mcp",
	)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Store failed: %v", err)},
			},
		}, StoreOutput{}, nil
	}

	output := StoreOutput{
		Action:    string(result.Decision.Action),
		Reasoning: result.Decision.Reasoning,
		ChunkID:   result.ChunkID,
		Stored:    result.Stored,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize result: %v", err)},
			},
		}, StoreOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
