// Package servecmder provides the serve command for running the engram
// HTTP API and MCP server.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomworks/engram/api"
	apimcp "github.com/loomworks/engram/api/mcp"
	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/logger"
	"github.com/loomworks/engram/pkg/service"
	"github.com/loomworks/engram/pkg/start"
)

type serveCommander struct {
	listen        string
	storageDriver string
	sqlitePath    string
	postgresDSN   string

	vectorProvider string
	vectorTarget   string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	llmProvider string
	llmModel    string
	llmBaseURL  string

	eventsProvider string
	eventsTopic    string

	noMCP bool
	debug bool

	cfg    *config.Config
	logger *zap.Logger
}

// serveFlagKeys lists every registry flag the serve command binds to viper.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagLLMBaseURL,
	config.FlagEventsProvider,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the engram HTTP API and MCP server.

The API exposes memory search, storage, chunk inspection, and the
consolidation audit log. The MCP server is mounted at /mcp on the same
listener so agents can search and store memories over the Model Context
Protocol.

Configuration follows viper precedence: CLI flags override ENGRAM_*
environment variables, which override config.toml, which overrides defaults.

Examples:
  engram serve
  engram serve --listen :9090 --sqlite ./engram.db
  engram serve --vector-store-provider qdrant --vector-store-target localhost:6334
  engram serve --no-mcp`

const serveShortDesc string = "Run the engram API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.DefaultFlags, serveFlagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	fs := config.DefaultFlags
	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagLLMProvider, &cmder.llmProvider)
	config.AddStringFlag(cmd, fs, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, fs, config.FlagLLMBaseURL, &cmder.llmBaseURL)
	config.AddStringFlag(cmd, fs, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, fs, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the MCP server")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	writers := []io.Writer{os.Stdout}
	if manager, err := start.NewManager(""); err == nil {
		if f, err := os.OpenFile(manager.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			defer func() { _ = f.Close() }()
			writers = append(writers, f)
		}
	}

	c.logger = logger.NewLoggerWithWriters(c.debug, writers...)
	defer func() { _ = c.logger.Sync() }()

	svc, err := service.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Service: svc,
		Noop:    c.noMCP,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
	}, svc, mcpServer, c.logger)

	if err := c.recordStartState(); err != nil {
		c.logger.Warn("could not record start state", zap.Error(err))
	}
	defer c.clearStartState()

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *serveCommander) recordStartState() error {
	manager, err := start.NewManager("")
	if err != nil {
		return err
	}

	lock, err := manager.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	apiURL := fmt.Sprintf("http://localhost%s", c.cfg.API.Listen)
	state := &start.State{
		DaemonPID: os.Getpid(),
		APIURL:    apiURL,
	}
	if !c.noMCP {
		state.MCPURL = apiURL + "/mcp"
	}

	return manager.SaveState(state)
}

func (c *serveCommander) clearStartState() {
	manager, err := start.NewManager("")
	if err != nil {
		return
	}

	lock, err := manager.Lock()
	if err != nil {
		return
	}
	defer func() { _ = lock.Release() }()

	_ = manager.ClearState()
}
