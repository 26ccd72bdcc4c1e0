package consolidation_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/consolidation"
	"github.com/loomworks/engram/pkg/memory"
	testutils "github.com/loomworks/engram/pkg/utils/test"
	"github.com/loomworks/engram/pkg/vector"
)

var _ = Describe("Engine", func() {
	var (
		ctx     context.Context
		store   *testutils.MockChunkStore
		vectors *testutils.MockVectorDriver
		caller  *testutils.MockCaller
		cfg     consolidation.Config
	)

	newChunk := func(id, text string) *memory.Chunk {
		return &memory.Chunk{
			ID:        id,
			Text:      text,
			Embedding: []float32{0.1, 0.2, 0.3},
			Area:      memory.AreaMain,
		}
	}

	// seed puts an existing chunk in both stores and makes the vector
	// driver return it at the given cosine distance.
	seed := func(id, text string, distance float64) {
		store.Chunks[id] = &memory.Chunk{ID: id, Text: text, Area: memory.AreaMain}
		vectors.Results = append(vectors.Results, vector.QueryResult{
			Document: vector.Document{ID: id},
			Distance: distance,
		})
	}

	newEngine := func() *consolidation.Engine {
		return consolidation.NewEngine(store, vectors, caller, cfg, "test-model", nil)
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockChunkStore()
		vectors = testutils.NewMockVectorDriver()
		caller = testutils.NewMockCaller(`{"action":"KEEP_SEPARATE","reasoning":"distinct"}`)
		cfg = consolidation.DefaultConfig()
	})

	Describe("guards", func() {
		It("rejects nil chunks", func() {
			_, err := newEngine().ProcessNewChunk(ctx, nil)
			Expect(err).To(HaveOccurred())
		})

		It("skips empty text without an audit row or model call", func() {
			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionSkip))
			Expect(result.Decision.Reasoning).To(Equal("empty chunk text"))
			Expect(store.Entries).To(BeEmpty())
			Expect(caller.CallCount()).To(BeZero())
		})

		It("treats whitespace-only text as empty", func() {
			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "  \n\t "))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionSkip))
			Expect(result.Decision.Reasoning).To(Equal("empty chunk text"))
			Expect(store.Entries).To(BeEmpty())
		})

		It("skips everything when the engine is disabled", func() {
			seed("c1", "existing", 0.1)
			cfg.Enabled = false

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "some text"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionSkip))
			Expect(result.Decision.Reasoning).To(Equal("consolidation disabled"))

			Expect(vectors.Queries).To(BeZero())
			Expect(caller.CallCount()).To(BeZero())
			Expect(store.Entries).To(BeEmpty())
		})

		It("keeps chunks without embeddings separate, skipping the vector query", func() {
			chunk := newChunk("n1", "some text")
			chunk.Embedding = nil

			result, err := newEngine().ProcessNewChunk(ctx, chunk)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(Equal("no similar candidates found"))

			Expect(vectors.Queries).To(BeZero())
			Expect(caller.CallCount()).To(BeZero())
			Expect(store.Entries).To(HaveLen(1))
		})
	})

	Describe("retrieval", func() {
		It("keeps separate without a model call when nothing is similar", func() {
			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "brand new fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(Equal("no similar candidates found"))
			Expect(caller.CallCount()).To(BeZero())

			// The no-candidate decision is still audited.
			Expect(store.Entries).To(HaveLen(1))
			Expect(store.Entries[0].Action).To(Equal("KEEP_SEPARATE"))
		})

		It("filters candidates below the similarity threshold", func() {
			// score = 1 - 0.4 = 0.6 < 0.7
			seed("far", "barely related", 0.4)

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Candidates).To(BeEmpty())
			Expect(caller.CallCount()).To(BeZero())
		})

		It("computes similarity as one minus cosine distance", func() {
			seed("near", "close fact", 0.2)

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Candidates).To(HaveLen(1))
			Expect(result.Candidates[0].Score).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("skips vector hits missing from the chunk store", func() {
			vectors.Results = append(vectors.Results, vector.QueryResult{
				Document: vector.Document{ID: "ghost"},
				Distance: 0.1,
			})

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Candidates).To(BeEmpty())
		})
	})

	Describe("arbitration prompt", func() {
		It("shows each candidate with id, score, and area", func() {
			seed("c1", "existing fact", 0.1)

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new fact"))
			Expect(err).NotTo(HaveOccurred())

			Expect(caller.Calls).To(HaveLen(1))
			Expect(caller.Calls[0]).To(ContainSubstring("[id: c1, similarity: 0.90, area: main]"))
			Expect(caller.Tasks).To(Equal([]string{"consolidation"}))
		})
	})

	Describe("MERGE", func() {
		It("rewrites the target and records the absorbed id", func() {
			seed("c1", "old phrasing", 0.1)
			caller.Response = `{"action":"MERGE","target_id":"c1","new_memory_content":"better phrasing","reasoning":"same fact"}`

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new phrasing"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionMerge))

			Expect(store.Chunks["c1"].Text).To(Equal("better phrasing"))
			Expect(store.Chunks["c1"].ConsolidatedFrom).To(ContainElement("n1"))
			Expect(consolidation.ShouldInsert(result.Decision)).To(BeFalse())
		})

		It("downgrades to KEEP_SEPARATE when merged content is missing", func() {
			seed("c1", "old", 0.1)
			caller.Response = `{"action":"MERGE","target_id":"c1","reasoning":"same fact"}`

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(ContainSubstring("downgraded"))
			Expect(store.Chunks["c1"].Text).To(Equal("old"))
		})

		It("downgrades when the target was never shown to the model", func() {
			seed("c1", "old", 0.1)
			caller.Response = `{"action":"MERGE","target_id":"elsewhere","new_memory_content":"x","reasoning":"hallucinated"}`

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(ContainSubstring("downgraded"))
		})
	})

	Describe("REPLACE", func() {
		BeforeEach(func() {
			caller.Response = `{"action":"REPLACE","target_id":"c1","reasoning":"superseded"}`
		})

		It("applies when the top similarity clears the safety threshold", func() {
			seed("c1", "stale fact", 0.05) // score 0.95 >= 0.9

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "fresh fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionReplace))

			Expect(store.Chunks).NotTo(HaveKey("c1"))
			Expect(vectors.DeletedIDs).To(ContainElement("c1"))
			Expect(consolidation.ShouldInsert(result.Decision)).To(BeTrue())
		})

		It("downgrades when the top similarity is below the safety threshold", func() {
			seed("c1", "stale fact", 0.15) // score 0.85 < 0.9

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "fresh fact"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(ContainSubstring("downgraded"))

			// Nothing destroyed.
			Expect(store.Chunks).To(HaveKey("c1"))
			Expect(vectors.DeletedIDs).To(BeEmpty())
		})
	})

	Describe("UPDATE", func() {
		It("rewrites the target without recording an absorbed id", func() {
			seed("c1", "port is 8080", 0.1)
			caller.Response = `{"action":"UPDATE","target_id":"c1","updated_content":"port is 9090","reasoning":"corrected"}`

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "port changed to 9090"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionUpdate))
			Expect(store.Chunks["c1"].Text).To(Equal("port is 9090"))
			Expect(store.Chunks["c1"].ConsolidatedFrom).To(BeEmpty())
		})
	})

	Describe("arbitration failures", func() {
		It("maps model errors to SKIP with llm_error, still audited", func() {
			seed("c1", "existing", 0.1)
			caller.Err = errors.New("upstream 500")

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionSkip))
			Expect(result.Err).To(Equal("llm_error"))
			Expect(result.Decision.Reasoning).To(Equal("llm_error"))

			Expect(store.Entries).To(HaveLen(1))
			Expect(store.Entries[0].Action).To(Equal("SKIP"))
		})

		It("maps deadline errors to SKIP with timeout", func() {
			seed("c1", "existing", 0.1)
			caller.Err = context.DeadlineExceeded

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionSkip))
			Expect(result.Err).To(Equal("timeout"))
		})

		It("falls back to KEEP_SEPARATE on unparseable responses", func() {
			seed("c1", "existing", 0.1)
			caller.Response = "not json"

			result, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Decision.Action).To(Equal(consolidation.ActionKeepSeparate))
			Expect(result.Decision.Reasoning).To(ContainSubstring("fallback"))
		})
	})

	Describe("audit log", func() {
		It("writes exactly one entry per processed chunk", func() {
			seed("c1", "existing", 0.1)

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "first"))
			Expect(err).NotTo(HaveOccurred())
			_, err = newEngine().ProcessNewChunk(ctx, newChunk("n2", "second"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Entries).To(HaveLen(2))
		})

		It("records model, area, and reasoning", func() {
			seed("c1", "existing", 0.1)
			caller.Response = `{"action":"SKIP","reasoning":"already known"}`

			chunk := newChunk("n1", "duplicate")
			chunk.Area = memory.AreaSolutions
			_, err := newEngine().ProcessNewChunk(ctx, chunk)
			Expect(err).NotTo(HaveOccurred())

			entry := store.Entries[0]
			Expect(entry.Model).To(Equal("test-model"))
			Expect(entry.Area).To(Equal(memory.AreaSolutions))
			Expect(entry.Reasoning).To(Equal("already known"))
			Expect(entry.Timestamp).To(BeNumerically(">", 0))
		})

		It("records the new chunk id first in sourceIds, then the target", func() {
			seed("c1", "existing", 0.1)
			caller.Response = `{"action":"MERGE","target_id":"c1","new_memory_content":"combined","reasoning":"same fact"}`

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "duplicate"))
			Expect(err).NotTo(HaveOccurred())

			entry := store.Entries[0]
			Expect(entry.SourceIDs).To(Equal([]string{"n1", "c1"}))
			Expect(entry.ResultID).NotTo(BeNil())
			Expect(*entry.ResultID).To(Equal("c1"))
		})

		It("includes the new chunk id in sourceIds when nothing is similar", func() {
			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "brand new fact"))
			Expect(err).NotTo(HaveOccurred())

			entry := store.Entries[0]
			Expect(entry.SourceIDs).To(Equal([]string{"n1"}))
			Expect(entry.ResultID).NotTo(BeNil())
			Expect(*entry.ResultID).To(Equal("n1"))
		})

		It("records the deleted target as REPLACE's resultId", func() {
			seed("c1", "stale fact", 0.05)
			caller.Response = `{"action":"REPLACE","target_id":"c1","reasoning":"superseded"}`

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "fresh fact"))
			Expect(err).NotTo(HaveOccurred())

			entry := store.Entries[0]
			Expect(entry.SourceIDs).To(Equal([]string{"n1", "c1"}))
			Expect(entry.ResultID).NotTo(BeNil())
			Expect(*entry.ResultID).To(Equal("c1"))
		})

		It("leaves resultId unset on forced SKIPs", func() {
			seed("c1", "existing", 0.1)
			caller.Err = errors.New("upstream 500")

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).NotTo(HaveOccurred())

			entry := store.Entries[0]
			Expect(entry.SourceIDs).To(Equal([]string{"n1"}))
			Expect(entry.ResultID).To(BeNil())
		})

		It("fails the pipeline when the audit write fails", func() {
			seed("c1", "existing", 0.1)
			store.FailAppendLog = errors.New("disk full")

			_, err := newEngine().ProcessNewChunk(ctx, newChunk("n1", "new"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Log", func() {
		It("filters by action", func() {
			seed("c1", "existing", 0.1)
			caller.Response = `{"action":"SKIP","reasoning":"dup"}`
			engine := newEngine()

			_, err := engine.ProcessNewChunk(ctx, newChunk("n1", "dup one"))
			Expect(err).NotTo(HaveOccurred())

			caller.Response = `{"action":"KEEP_SEPARATE","reasoning":"new"}`
			_, err = engine.ProcessNewChunk(ctx, newChunk("n2", "something else"))
			Expect(err).NotTo(HaveOccurred())

			entries, err := engine.Log(ctx, memory.LogFilter{Action: "SKIP"})
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Action).To(Equal("SKIP"))
		})
	})
})
