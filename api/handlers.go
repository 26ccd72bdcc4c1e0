package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/llm"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/storage"
)

// handlePing handles GET /ping requests for health checks.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetChunk handles GET /v1/chunks/:id.
func (s *Server) handleGetChunk(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "id parameter is required",
		})
	}

	chunk, err := s.service.GetChunk(c.Context(), id)
	if err != nil {
		if errors.As(err, &storage.ErrNotFound{}) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
				Error: "chunk not found",
			})
		}
		s.logger.Error("failed to get chunk",
			zap.String("id", id),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to get chunk",
		})
	}

	// Embeddings are internal detail; strip them from API responses
	chunk.Embedding = nil

	return c.JSON(chunk)
}

// chunkListResponse is the response body for GET /v1/chunks.
type chunkListResponse struct {
	Chunks []*memory.Chunk `json:"chunks"`
	Count  int             `json:"count"`
}

// handleListChunks handles GET /v1/chunks requests.
// Query parameters:
//   - area (optional): filter by memory area
//   - limit (optional, default 50): maximum number of chunks to return
func (s *Server) handleListChunks(c *fiber.Ctx) error {
	var area memory.Area
	if areaStr := c.Query("area"); areaStr != "" {
		area = memory.NormalizeArea(memory.Area(areaStr))
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	chunks, err := s.service.ListChunks(c.Context(), area, limit)
	if err != nil {
		s.logger.Error("failed to list chunks", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to list chunks",
		})
	}

	for _, chunk := range chunks {
		chunk.Embedding = nil
	}

	return c.JSON(chunkListResponse{
		Chunks: chunks,
		Count:  len(chunks),
	})
}

// logResponse is the response body for GET /v1/log.
type logResponse struct {
	Entries []*memory.LogEntry `json:"entries"`
	Count   int                `json:"count"`
}

// handleQueryLog handles GET /v1/log requests over the consolidation
// audit log.
// Query parameters:
//   - area (optional): filter by memory area
//   - action (optional): filter by decision action
//   - since (optional): epoch milliseconds lower bound
//   - limit (optional, default 100): maximum number of entries to return
func (s *Server) handleQueryLog(c *fiber.Ctx) error {
	filter := memory.LogFilter{}

	if areaStr := c.Query("area"); areaStr != "" {
		filter.Area = memory.NormalizeArea(memory.Area(areaStr))
	}

	if action := c.Query("action"); action != "" {
		filter.Action = action
	}

	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "since must be a non-negative integer (epoch milliseconds)",
			})
		}
		filter.Since = parsed
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "limit must be a positive integer",
			})
		}
		filter.Limit = parsed
	}

	entries, err := s.service.Log(c.Context(), filter)
	if err != nil {
		s.logger.Error("failed to query consolidation log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to query consolidation log",
		})
	}

	return c.JSON(logResponse{
		Entries: entries,
		Count:   len(entries),
	})
}
