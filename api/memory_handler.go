package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/llm"
	"github.com/loomworks/engram/pkg/memory"
)

// createMemoryRequest is the request body for POST /v1/memories.
type createMemoryRequest struct {
	Text       string   `json:"text"`
	Area       string   `json:"area,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	SourcePath string   `json:"source_path,omitempty"`
}

// handleCreateMemory handles POST /v1/memories. The candidate memory runs
// through the full consolidation pipeline before any storage happens, so the
// response carries the decision rather than a plain created row.
func (s *Server) handleCreateMemory(c *fiber.Ctx) error {
	var req createMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "text is required",
		})
	}

	importance := memory.DefaultImportance
	if req.Importance != nil {
		importance = *req.Importance
	}

	sourcePath := req.SourcePath
	if sourcePath == "" {
		sourcePath = "api"
	}

	result, err := s.service.Remember(
		c.Context(),
		req.Text,
		memory.NormalizeArea(memory.Area(req.Area)),
		importance,
		sourcePath,
	)
	if err != nil {
		s.logger.Error("failed to store memory", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to store memory",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}
