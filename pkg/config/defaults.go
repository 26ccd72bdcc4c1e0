package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8081"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"

	defaultSimilarityThreshold        = 0.7
	defaultReplaceSimilarityThreshold = 0.9
	defaultMaxSimilarMemories         = 10
	defaultMaxLLMContextMemories      = 5
	defaultProcessingTimeoutMs        = 60000

	defaultMaxTranscriptChars  = 12000
	defaultExtractionTimeoutMs = 30000

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "engram.decisions"
)

func boolPtr(b bool) *bool { return &b }

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
		},
		Consolidation: ConsolidationConfig{
			Enabled:                    boolPtr(true),
			SimilarityThreshold:        defaultSimilarityThreshold,
			ReplaceSimilarityThreshold: defaultReplaceSimilarityThreshold,
			MaxSimilarMemories:         defaultMaxSimilarMemories,
			MaxLLMContextMemories:      defaultMaxLLMContextMemories,
			ProcessingTimeoutMs:        defaultProcessingTimeoutMs,
		},
		Extraction: ExtractionConfig{
			Enabled:             false,
			MaxTranscriptChars:  defaultMaxTranscriptChars,
			ExtractionTimeoutMs: defaultExtractionTimeoutMs,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
