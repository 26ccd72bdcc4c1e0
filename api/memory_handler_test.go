package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/service"
	testutils "github.com/loomworks/engram/pkg/utils/test"
	"github.com/loomworks/engram/pkg/vector"
)

func postMemory(server *Server, reqBody createMemoryRequest) *http.Response {
	GinkgoHelper()
	body, err := json.Marshal(reqBody)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, "/v1/memories", bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

var _ = Describe("Memory Handler", func() {
	var (
		server *Server
		store  *testutils.MockChunkStore
	)

	Describe("POST /v1/memories", func() {
		BeforeEach(func() {
			server, store, _ = newTestServer(`{"action":"KEEP_SEPARATE","reasoning":"distinct"}`)
		})

		It("stores a new memory and returns 201 with the decision", func() {
			resp := postMemory(server, createMemoryRequest{
				Text: "the staging database is read-only on weekends",
				Area: "fragments",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			result := decodeBody[service.RememberResult](resp)
			Expect(result.Stored).To(BeTrue())
			Expect(result.ChunkID).NotTo(BeEmpty())
			Expect(string(result.Decision.Action)).To(Equal("KEEP_SEPARATE"))

			Expect(store.Chunks).To(HaveKey(result.ChunkID))
			Expect(store.Chunks[result.ChunkID].Area).To(Equal(memory.AreaFragments))
		})

		It("defaults importance and normalizes unknown areas", func() {
			resp := postMemory(server, createMemoryRequest{
				Text: "some fact",
				Area: "attic",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			result := decodeBody[service.RememberResult](resp)
			chunk := store.Chunks[result.ChunkID]
			Expect(chunk.Area).To(Equal(memory.AreaMain))
			Expect(chunk.Importance).To(Equal(memory.DefaultImportance))
		})

		It("rejects an empty text", func() {
			resp := postMemory(server, createMemoryRequest{Text: ""})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("does not insert when the decision is a merge", func() {
			var vectors *testutils.MockVectorDriver
			server, store, vectors = newTestServer(`{"action":"MERGE","target_id":"c1","new_memory_content":"combined","reasoning":"same fact"}`)
			// existing chunk close enough to be a candidate
			store.Chunks["c1"] = &memory.Chunk{ID: "c1", Text: "old phrasing", Area: memory.AreaMain}
			vectors.Results = []vector.QueryResult{
				{Document: vector.Document{ID: "c1"}, Distance: 0.1},
			}

			resp := postMemory(server, createMemoryRequest{Text: "new phrasing"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			result := decodeBody[service.RememberResult](resp)
			Expect(result.Stored).To(BeFalse())
			Expect(store.Chunks["c1"].Text).To(Equal("combined"))
		})
	})
})
