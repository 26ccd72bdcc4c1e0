package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/engram/pkg/memory"
)

var (
	logToolName    = "consolidation_log"
	logDescription = "Query the append-only consolidation audit log. Every deduplication decision (MERGE, REPLACE, KEEP_SEPARATE, UPDATE, SKIP) is recorded with its reasoning. Use this to inspect why a memory was or was not stored."
)

// LogInput represents the input arguments for the consolidation_log tool.
type LogInput struct {
	Area   string `json:"area,omitempty" jsonschema:"filter by memory area"`
	Action string `json:"action,omitempty" jsonschema:"filter by decision action (MERGE, REPLACE, KEEP_SEPARATE, UPDATE, SKIP)"`
	Since  int64  `json:"since,omitempty" jsonschema:"epoch milliseconds lower bound"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of entries to return (default: 100)"`
}

// LogOutput represents the structured output of a log query.
type LogOutput struct {
	Entries []*memory.LogEntry `json:"entries"`
	Count   int                `json:"count"`
}

// handleLog processes an audit log query via MCP.
func (s *Server) handleLog(ctx context.Context, _ *mcp.CallToolRequest, input LogInput) (*mcp.CallToolResult, LogOutput, error) {
	filter := memory.LogFilter{
		Action: input.Action,
		Since:  input.Since,
		Limit:  input.Limit,
	}
	if input.Area != "" {
		filter.Area = memory.NormalizeArea(memory.Area(input.Area))
	}

	entries, err := s.config.Service.Log(ctx, filter)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Log query failed: %v", err)},
			},
		}, LogOutput{}, nil
	}

	if entries == nil {
		entries = []*memory.LogEntry{}
	}

	output := LogOutput{Entries: entries, Count: len(entries)}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, LogOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
