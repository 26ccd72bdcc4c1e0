package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apimcp "github.com/loomworks/engram/api/mcp"
	"github.com/loomworks/engram/pkg/service"
)

// Server is the API server for querying and managing the memory store.
type Server struct {
	config  Config
	service *service.Service
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The service is injected to allow sharing with other components
// (e.g., the MCP server and the CLI). The MCP server may be nil when
// MCP capabilities are disabled.
func NewServer(config Config, svc *service.Service, mcpServer *apimcp.Server, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		service: svc,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Get("/v1/log", s.handleQueryLog)
	app.Get("/v1/chunks", s.handleListChunks)
	app.Get("/v1/chunks/:id", s.handleGetChunk)
	app.Post("/v1/memories", s.handleCreateMemory)

	if mcpServer != nil && mcpServer.Handler() != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
