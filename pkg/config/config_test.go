package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/config"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewDefaultConfig", func() {
		It("populates every section", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
			Expect(cfg.API.Listen).To(Equal(":8081"))
			Expect(cfg.VectorStore.Provider).To(Equal("sqlite"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Embedding.Dimensions).To(BeEquivalentTo(768))
			Expect(cfg.LLM.Provider).To(Equal("ollama"))
		})

		It("sets consolidation thresholds", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Consolidation.Enabled).NotTo(BeNil())
			Expect(*cfg.Consolidation.Enabled).To(BeTrue())
			Expect(cfg.Consolidation.SimilarityThreshold).To(Equal(0.7))
			Expect(cfg.Consolidation.ReplaceSimilarityThreshold).To(Equal(0.9))
			Expect(cfg.Consolidation.MaxSimilarMemories).To(Equal(10))
			Expect(cfg.Consolidation.MaxLLMContextMemories).To(Equal(5))
			Expect(cfg.Consolidation.ProcessingTimeoutMs).To(Equal(60000))
		})

		It("disables extraction by default", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Extraction.Enabled).To(BeFalse())
			Expect(cfg.Extraction.MaxTranscriptChars).To(Equal(12000))
			Expect(cfg.Extraction.ExtractionTimeoutMs).To(Equal(30000))
		})

		It("uses the nop event publisher by default", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Events.Provider).To(Equal("nop"))
		})
	})

	Describe("ParseConfigTOML", func() {
		It("parses a minimal config", func() {
			data := []byte(`
[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"

[consolidation]
similarity_threshold = 0.8
`)
			cfg, err := config.ParseConfigTOML(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Provider).To(Equal("anthropic"))
			Expect(cfg.Consolidation.SimilarityThreshold).To(Equal(0.8))
		})

		It("rejects unsupported versions", func() {
			_, err := config.ParseConfigTOML([]byte("version = 99"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
		})

		It("errors on malformed TOML", func() {
			_, err := config.ParseConfigTOML([]byte("[[[not toml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Configer", func() {
		It("returns defaults when no config file exists", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		})

		It("merges file values over defaults", func() {
			data := `
[api]
listen = ":9999"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":9999"))
			// Untouched sections fall back to defaults.
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Consolidation.SimilarityThreshold).To(Equal(0.7))
			Expect(cfg.Consolidation.Enabled).NotTo(BeNil())
			Expect(*cfg.Consolidation.Enabled).To(BeTrue())
		})

		It("honors an explicit consolidation off switch", func() {
			data := `
[consolidation]
enabled = false
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Consolidation.Enabled).NotTo(BeNil())
			Expect(*cfg.Consolidation.Enabled).To(BeFalse())
		})

		It("round-trips through SaveConfig", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.LLM.Model = "gpt-4o-mini"
			Expect(cfger.SaveConfig(cfg)).To(Succeed())

			loaded, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.LLM.Model).To(Equal("gpt-4o-mini"))
		})

		It("rejects saving nil config", func() {
			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SaveConfig(nil)).NotTo(Succeed())
		})
	})

	Describe("SetConfigValue / GetConfigValue", func() {
		var cfger *config.Configer

		BeforeEach(func() {
			var err error
			cfger, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and gets a string key", func() {
			Expect(cfger.SetConfigValue("llm.model", "llama3.3")).To(Succeed())

			val, err := cfger.GetConfigValue("llm.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("llama3.3"))
		})

		It("sets and gets a float key", func() {
			Expect(cfger.SetConfigValue("consolidation.similarity_threshold", "0.85")).To(Succeed())

			val, err := cfger.GetConfigValue("consolidation.similarity_threshold")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("0.85"))
		})

		It("sets and gets a bool key", func() {
			Expect(cfger.SetConfigValue("extraction.enabled", "true")).To(Succeed())

			val, err := cfger.GetConfigValue("extraction.enabled")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("true"))
		})

		It("rejects unknown keys", func() {
			err := cfger.SetConfigValue("not.a.key", "x")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("rejects invalid numeric values", func() {
			err := cfger.SetConfigValue("consolidation.max_similar_memories", "lots")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("includes every registered key", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(ContainElement("storage.driver"))
			Expect(keys).To(ContainElement("consolidation.enabled"))
			Expect(keys).To(ContainElement("consolidation.similarity_threshold"))
			Expect(keys).To(ContainElement("extraction.enabled"))
			Expect(keys).To(ContainElement("events.provider"))

			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), "key %s should be valid", k)
			}
		})
	})

	Describe("InitViper", func() {
		It("applies defaults when no file exists", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("embedding.model")).To(Equal("nomic-embed-text"))
			Expect(v.GetFloat64("consolidation.similarity_threshold")).To(Equal(0.7))
		})

		It("prefers environment variables over file values", func() {
			data := `
[llm]
model = "from-file"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			os.Setenv("ENGRAM_LLM_MODEL", "from-env")
			DeferCleanup(func() { os.Unsetenv("ENGRAM_LLM_MODEL") })

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("llm.model")).To(Equal("from-env"))
		})

		It("materializes a full Config via FromViper", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.Consolidation.MaxSimilarMemories).To(Equal(10))
			Expect(cfg.Extraction.Enabled).To(BeFalse())
			Expect(cfg.Events.Topic).To(Equal("engram.decisions"))
		})
	})
})
