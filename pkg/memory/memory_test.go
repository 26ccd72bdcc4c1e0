package memory_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/memory"
)

var _ = Describe("Area", func() {
	It("lists exactly four areas", func() {
		Expect(memory.Areas()).To(ConsistOf(
			memory.AreaMain,
			memory.AreaFragments,
			memory.AreaSolutions,
			memory.AreaInstruments,
		))
	})

	It("validates known areas", func() {
		for _, a := range memory.Areas() {
			Expect(memory.ValidArea(a)).To(BeTrue())
		}
	})

	It("rejects unknown areas", func() {
		Expect(memory.ValidArea("attic")).To(BeFalse())
		Expect(memory.ValidArea("")).To(BeFalse())
	})

	Describe("NormalizeArea", func() {
		It("passes valid areas through", func() {
			Expect(memory.NormalizeArea(memory.AreaSolutions)).To(Equal(memory.AreaSolutions))
		})

		It("maps unknown and empty areas to main", func() {
			Expect(memory.NormalizeArea("attic")).To(Equal(memory.AreaMain))
			Expect(memory.NormalizeArea("")).To(Equal(memory.AreaMain))
		})
	})
})

var _ = Describe("ClampImportance", func() {
	It("leaves in-range values untouched", func() {
		Expect(memory.ClampImportance(0)).To(Equal(0.0))
		Expect(memory.ClampImportance(0.5)).To(Equal(0.5))
		Expect(memory.ClampImportance(1)).To(Equal(1.0))
	})

	It("clamps out-of-range values", func() {
		Expect(memory.ClampImportance(-3)).To(Equal(0.0))
		Expect(memory.ClampImportance(7.5)).To(Equal(1.0))
	})

	It("maps non-finite values to the default", func() {
		Expect(memory.ClampImportance(math.NaN())).To(Equal(memory.DefaultImportance))
		Expect(memory.ClampImportance(math.Inf(1))).To(Equal(memory.DefaultImportance))
		Expect(memory.ClampImportance(math.Inf(-1))).To(Equal(memory.DefaultImportance))
	})

	It("always lands in [0,1]", func() {
		inputs := []float64{-1e9, -0.001, 0.3, 1.001, 1e9, math.NaN(), math.Inf(1)}
		for _, v := range inputs {
			got := memory.ClampImportance(v)
			Expect(got).To(BeNumerically(">=", 0))
			Expect(got).To(BeNumerically("<=", 1))
		}
	})
})
