package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as config.toml
// in the .engram/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version       int                 `toml:"version"`
	Storage       StorageConfig       `toml:"storage"`
	API           APIConfig           `toml:"api"`
	VectorStore   VectorStoreConfig   `toml:"vector_store"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	LLM           LLMConfig           `toml:"llm"`
	Consolidation ConsolidationConfig `toml:"consolidation"`
	Extraction    ExtractionConfig    `toml:"extraction"`
	Events        EventsConfig        `toml:"events"`
}

// StorageConfig holds chunk and log store settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds settings for the arbitration and extraction model.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// ConsolidationConfig holds consolidation decision engine settings.
// Enabled is a pointer so a file that omits it keeps the default (on)
// while an explicit `enabled = false` turns the engine off.
type ConsolidationConfig struct {
	Enabled                    *bool   `toml:"enabled,omitempty"`
	SimilarityThreshold        float64 `toml:"similarity_threshold,omitempty"`
	ReplaceSimilarityThreshold float64 `toml:"replace_similarity_threshold,omitempty"`
	MaxSimilarMemories         int     `toml:"max_similar_memories,omitempty"`
	MaxLLMContextMemories      int     `toml:"max_llm_context_memories,omitempty"`
	ProcessingTimeoutMs        int     `toml:"processing_timeout_ms,omitempty"`
}

// ExtractionConfig holds transcript extraction settings.
type ExtractionConfig struct {
	Enabled             bool `toml:"enabled"`
	MaxTranscriptChars  int  `toml:"max_transcript_chars,omitempty"`
	ExtractionTimeoutMs int  `toml:"extraction_timeout_ms,omitempty"`
}

// EventsConfig holds decision event publishing settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.base_url": {
		get: func(c *Config) string { return c.LLM.BaseURL },
		set: func(c *Config, v string) error { c.LLM.BaseURL = v; return nil },
	},
	"consolidation.enabled": {
		get: func(c *Config) string {
			if c.Consolidation.Enabled == nil {
				return "true"
			}
			return strconv.FormatBool(*c.Consolidation.Enabled)
		},
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.enabled: %w", err)
			}
			c.Consolidation.Enabled = &b
			return nil
		},
	},
	"consolidation.similarity_threshold": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Consolidation.SimilarityThreshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.similarity_threshold: %w", err)
			}
			c.Consolidation.SimilarityThreshold = f
			return nil
		},
	},
	"consolidation.replace_similarity_threshold": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Consolidation.ReplaceSimilarityThreshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.replace_similarity_threshold: %w", err)
			}
			c.Consolidation.ReplaceSimilarityThreshold = f
			return nil
		},
	},
	"consolidation.max_similar_memories": {
		get: func(c *Config) string { return strconv.Itoa(c.Consolidation.MaxSimilarMemories) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.max_similar_memories: %w", err)
			}
			c.Consolidation.MaxSimilarMemories = n
			return nil
		},
	},
	"consolidation.max_llm_context_memories": {
		get: func(c *Config) string { return strconv.Itoa(c.Consolidation.MaxLLMContextMemories) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.max_llm_context_memories: %w", err)
			}
			c.Consolidation.MaxLLMContextMemories = n
			return nil
		},
	},
	"consolidation.processing_timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Consolidation.ProcessingTimeoutMs) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.processing_timeout_ms: %w", err)
			}
			c.Consolidation.ProcessingTimeoutMs = n
			return nil
		},
	},
	"extraction.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Extraction.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for extraction.enabled: %w", err)
			}
			c.Extraction.Enabled = b
			return nil
		},
	},
	"extraction.max_transcript_chars": {
		get: func(c *Config) string { return strconv.Itoa(c.Extraction.MaxTranscriptChars) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for extraction.max_transcript_chars: %w", err)
			}
			c.Extraction.MaxTranscriptChars = n
			return nil
		},
	},
	"extraction.extraction_timeout_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Extraction.ExtractionTimeoutMs) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for extraction.extraction_timeout_ms: %w", err)
			}
			c.Extraction.ExtractionTimeoutMs = n
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
