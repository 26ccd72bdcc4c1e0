package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/consolidation"
	"github.com/loomworks/engram/pkg/credentials"
	"github.com/loomworks/engram/pkg/dotdir"
	embeddingutils "github.com/loomworks/engram/pkg/embeddings/utils"
	eventstreamutils "github.com/loomworks/engram/pkg/eventstream/utils"
	"github.com/loomworks/engram/pkg/extraction"
	"github.com/loomworks/engram/pkg/llm"
	storageutils "github.com/loomworks/engram/pkg/storage/utils"
	vectorutils "github.com/loomworks/engram/pkg/vector/utils"
)

const (
	chunkDBFileName  = "engram.db"
	vectorDBFileName = "vectors.db"

	// vectorCollection is the qdrant collection name for memory embeddings.
	vectorCollection = "engram-memories"
)

// Build assembles a Service from persistent configuration: storage, vector
// store, embedder, model caller, decision engine, event publisher, and the
// extraction orchestrator when extraction is enabled.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn, err := storageDSN(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storageutils.NewStorageDriver(ctx, cfg.Storage.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}

	vectorTarget := cfg.VectorStore.Target
	if vectorTarget == "" && (cfg.VectorStore.Provider == "sqlite" || cfg.VectorStore.Provider == "") {
		vectorTarget, err = dotdirPath(vectorDBFileName)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	vectors, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       vectorTarget,
		Collection:   vectorCollection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		_ = vectors.Close()
		_ = store.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	caller, err := llm.NewCaller(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   resolveAPIKey(cfg, logger),
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		_ = embedder.Close()
		_ = vectors.Close()
		_ = store.Close()
		return nil, fmt.Errorf("creating model caller: %w", err)
	}

	publisher, err := eventstreamutils.NewPublisher(cfg.Events.Provider, cfg.Events.Brokers, cfg.Events.Topic)
	if err != nil {
		_ = embedder.Close()
		_ = vectors.Close()
		_ = store.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	engine := consolidation.NewEngine(
		store,
		vectors,
		caller,
		consolidationConfig(cfg),
		cfg.LLM.Model,
		logger,
		consolidation.WithPublisher(publisher),
	)

	svc := New(store, vectors, embedder, engine, cfg.LLM.Model, logger)
	svc.SetPublisher(publisher)

	if cfg.Extraction.Enabled {
		orchestrator := extraction.NewOrchestrator(
			caller,
			llm.AllowAll{},
			svc,
			extractionConfig(cfg),
			logger,
		)
		svc.SetOrchestrator(orchestrator)
	}

	return svc, nil
}

// resolveAPIKey returns the API key the model caller should use. An explicit
// config key wins, then provider environment variables, then keys stored via
// "engram auth". A missing key is not an error here since local providers do
// not need one.
func resolveAPIKey(cfg *config.Config, logger *zap.Logger) string {
	if cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey
	}

	provider := cfg.LLM.Provider
	if !credentials.IsSupportedProvider(provider) {
		return ""
	}
	if os.Getenv(credentials.EnvVarForProvider(provider)) != "" {
		// The caller resolves env vars itself.
		return ""
	}

	mgr, err := credentials.NewManager("")
	if err != nil {
		logger.Debug("could not open stored credentials", zap.Error(err))
		return ""
	}
	key, err := mgr.GetKey(provider)
	if err != nil {
		logger.Debug("could not read stored credentials", zap.Error(err))
		return ""
	}
	return key
}

func storageDSN(cfg *config.Config) (string, error) {
	switch cfg.Storage.Driver {
	case "postgres", "postgresql":
		if cfg.Storage.PostgresDSN == "" {
			return "", fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		return cfg.Storage.PostgresDSN, nil
	default:
		if cfg.Storage.SQLitePath != "" {
			return cfg.Storage.SQLitePath, nil
		}
		return dotdirPath(chunkDBFileName)
	}
}

func dotdirPath(name string) (string, error) {
	dir, err := dotdir.NewManager().Ensure("")
	if err != nil {
		return "", fmt.Errorf("resolving engram directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

func consolidationConfig(cfg *config.Config) consolidation.Config {
	out := consolidation.DefaultConfig()
	if cfg.Consolidation.Enabled != nil {
		out.Enabled = *cfg.Consolidation.Enabled
	}
	if cfg.Consolidation.SimilarityThreshold > 0 {
		out.SimilarityThreshold = cfg.Consolidation.SimilarityThreshold
	}
	if cfg.Consolidation.ReplaceSimilarityThreshold > 0 {
		out.ReplaceSimilarityThreshold = cfg.Consolidation.ReplaceSimilarityThreshold
	}
	if cfg.Consolidation.MaxSimilarMemories > 0 {
		out.MaxSimilarMemories = cfg.Consolidation.MaxSimilarMemories
	}
	if cfg.Consolidation.MaxLLMContextMemories > 0 {
		out.MaxLLMContextMemories = cfg.Consolidation.MaxLLMContextMemories
	}
	if cfg.Consolidation.ProcessingTimeoutMs > 0 {
		out.ProcessingTimeout = time.Duration(cfg.Consolidation.ProcessingTimeoutMs) * time.Millisecond
	}
	return out
}

func extractionConfig(cfg *config.Config) extraction.Config {
	out := extraction.DefaultConfig()
	out.Enabled = cfg.Extraction.Enabled
	if cfg.Extraction.MaxTranscriptChars > 0 {
		out.MaxTranscriptChars = cfg.Extraction.MaxTranscriptChars
	}
	if cfg.Extraction.ExtractionTimeoutMs > 0 {
		out.ExtractionTimeout = time.Duration(cfg.Extraction.ExtractionTimeoutMs) * time.Millisecond
	}
	return out
}
