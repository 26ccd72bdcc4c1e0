package mcp

import (
	"context"
	"encoding/json"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/consolidation"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/service"
	testutils "github.com/loomworks/engram/pkg/utils/test"
	"github.com/loomworks/engram/pkg/vector"
)

var _ = Describe("Memory tools", func() {
	var (
		ctx     context.Context
		server  *Server
		store   *testutils.MockChunkStore
		vectors *testutils.MockVectorDriver
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockChunkStore()
		vectors = testutils.NewMockVectorDriver()
		embedder := testutils.NewMockEmbedder()
		caller := testutils.NewMockCaller(`{"action":"KEEP_SEPARATE","reasoning":"distinct"}`)

		engine := consolidation.NewEngine(store, vectors, caller, consolidation.DefaultConfig(), "test-model", nil)
		svc := service.New(store, vectors, embedder, engine, "test-model", nil)

		var err error
		server, err = NewServer(Config{Service: svc, Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("memory_search", func() {
		BeforeEach(func() {
			store.Chunks["c1"] = &memory.Chunk{ID: "c1", Text: "CI runs on push", Area: memory.AreaMain, Importance: 0.8}
			vectors.Results = []vector.QueryResult{
				{Document: vector.Document{ID: "c1"}, Distance: 0.25},
			}
		})

		It("returns scored results with serialized JSON content", func() {
			result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "ci"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].ID).To(Equal("c1"))
			Expect(output.Results[0].Score).To(BeNumerically("~", 0.75, 1e-9))

			text, ok := result.Content[0].(*mcpsdk.TextContent)
			Expect(ok).To(BeTrue())

			var roundTrip SearchOutput
			Expect(json.Unmarshal([]byte(text.Text), &roundTrip)).To(Succeed())
			Expect(roundTrip.Query).To(Equal("ci"))
		})

		It("reports query failures as tool errors", func() {
			vectors.FailQuery = errors.New("index offline")

			result, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "ci"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("memory_store", func() {
		It("stores a new memory and reports the decision", func() {
			result, output, err := server.handleStore(ctx, nil, StoreInput{
				Text: "deploys happen from main",
				Area: "solutions",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Action).To(Equal("KEEP_SEPARATE"))
			Expect(output.Stored).To(BeTrue())
			Expect(store.Chunks).To(HaveKey(output.ChunkID))
		})

		It("requires text", func() {
			result, _, err := server.handleStore(ctx, nil, StoreInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("consolidation_log", func() {
		BeforeEach(func() {
			store.Entries = append(store.Entries, &memory.LogEntry{
				ID:        "e1",
				Timestamp: 1000,
				Action:    "MERGE",
				SourceIDs: []string{"a", "b"},
				Area:      memory.AreaMain,
				Reasoning: "same fact",
			})
		})

		It("returns matching entries", func() {
			result, output, err := server.handleLog(ctx, nil, LogInput{Action: "MERGE"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Entries[0].ID).To(Equal("e1"))
		})

		It("returns an empty slice when nothing matches", func() {
			_, output, err := server.handleLog(ctx, nil, LogInput{Action: "SKIP"})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Entries).NotTo(BeNil())
			Expect(output.Count).To(Equal(0))
		})
	})
})
