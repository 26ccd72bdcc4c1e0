package extraction_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/extraction"
	"github.com/loomworks/engram/pkg/memory"
)

// findStrategy pulls a strategy out of the fixed set by name.
func findStrategy(name string) extraction.Strategy {
	for _, s := range extraction.Strategies() {
		if s.Name == name {
			return s
		}
	}
	Fail("unknown strategy " + name)
	return extraction.Strategy{}
}

var _ = Describe("Strategies", func() {
	It("defines exactly three strategies with distinct areas", func() {
		strategies := extraction.Strategies()
		Expect(strategies).To(HaveLen(3))

		areas := map[memory.Area]bool{}
		for _, s := range strategies {
			areas[s.Area] = true
		}
		Expect(areas).To(HaveKey(memory.AreaSolutions))
		Expect(areas).To(HaveKey(memory.AreaFragments))
		Expect(areas).To(HaveKey(memory.AreaInstruments))
	})
})

var _ = Describe("solutions strategy", func() {
	var s extraction.Strategy

	BeforeEach(func() {
		s = findStrategy("solutions")
	})

	It("formats problem and solution", func() {
		items := s.Parse(`[{"problem":"OOM on startup","solution":"raise heap limit","importance":0.8}]`)
		Expect(items).To(HaveLen(1))
		Expect(items[0].Area).To(Equal(memory.AreaSolutions))
		Expect(items[0].Text).To(Equal("Problem: OOM on startup\nSolution: raise heap limit"))
		Expect(items[0].Importance).To(Equal(0.8))
	})

	It("appends context when present", func() {
		items := s.Parse(`[{"problem":"p","solution":"s","context":"only under load"}]`)
		Expect(items[0].Text).To(Equal("Problem: p\nSolution: s\nContext: only under load"))
	})

	It("defaults missing importance to 0.5", func() {
		items := s.Parse(`[{"problem":"p","solution":"s"}]`)
		Expect(items[0].Importance).To(Equal(memory.DefaultImportance))
	})

	It("clamps out-of-range importance", func() {
		items := s.Parse(`[{"problem":"p","solution":"s","importance":3.5}]`)
		Expect(items[0].Importance).To(Equal(1.0))
	})

	It("rejects items missing required fields", func() {
		items := s.Parse(`[{"problem":"p"},{"solution":"s"},{"problem":"p","solution":"s"}]`)
		Expect(items).To(HaveLen(1))
	})

	It("rejects null and non-object entries", func() {
		items := s.Parse(`[null, 42, "text", {"problem":"p","solution":"s"}]`)
		Expect(items).To(HaveLen(1))
	})

	It("tolerates code fences around the array", func() {
		items := s.Parse("```json\n[{\"problem\":\"p\",\"solution\":\"s\"}]\n```")
		Expect(items).To(HaveLen(1))
	})

	It("treats an unparseable response as nothing found", func() {
		items := s.Parse("I could not find any solutions.")
		Expect(items).To(BeEmpty())
	})

	It("returns no items for an empty array", func() {
		items := s.Parse(`[]`)
		Expect(items).To(BeEmpty())
	})
})

var _ = Describe("fragments strategy", func() {
	It("formats category and fact", func() {
		s := findStrategy("fragments")
		items := s.Parse(`[{"category":"convention","fact":"tests live next to sources","importance":0.6}]`)
		Expect(items[0].Area).To(Equal(memory.AreaFragments))
		Expect(items[0].Text).To(Equal("[convention] tests live next to sources"))
	})

	It("rejects items missing the fact", func() {
		s := findStrategy("fragments")
		items := s.Parse(`[{"category":"x"},{"importance":0.4}]`)
		Expect(items).To(BeEmpty())
	})

	It("defaults a missing category to fact", func() {
		s := findStrategy("fragments")
		items := s.Parse(`[{"fact":"the db lives in .engram"}]`)
		Expect(items).To(HaveLen(1))
		Expect(items[0].Text).To(Equal("[fact] the db lives in .engram"))
	})
})

var _ = Describe("instruments strategy", func() {
	It("formats type, name, and description", func() {
		s := findStrategy("instruments")
		items := s.Parse(`[{"type":"command","name":"go vet","description":"caught the shadowed err"}]`)
		Expect(items[0].Area).To(Equal(memory.AreaInstruments))
		Expect(items[0].Text).To(Equal("[command] go vet: caught the shadowed err"))
	})

	It("rejects items missing the name or description", func() {
		s := findStrategy("instruments")
		items := s.Parse(`[{"type":"tool","name":"rg"},{"type":"tool","description":"d"}]`)
		Expect(items).To(BeEmpty())
	})

	It("defaults a missing type to tool", func() {
		s := findStrategy("instruments")
		items := s.Parse(`[{"name":"rg","description":"fast recursive search"}]`)
		Expect(items).To(HaveLen(1))
		Expect(items[0].Text).To(Equal("[tool] rg: fast recursive search"))
	})
})
