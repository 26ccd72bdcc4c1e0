package consolidation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/consolidation"
)

var _ = Describe("ParseDecision", func() {
	It("parses a clean decision", func() {
		d := consolidation.ParseDecision(`{"action":"MERGE","target_id":"c1","new_memory_content":"combined","reasoning":"same fact"}`)
		Expect(d.Action).To(Equal(consolidation.ActionMerge))
		Expect(d.TargetIDs).To(Equal([]string{"c1"}))
		Expect(d.MergedContent).To(Equal("combined"))
		Expect(d.Reasoning).To(Equal("same fact"))
	})

	It("reads UPDATE's rewritten text from updated_content", func() {
		d := consolidation.ParseDecision(`{"action":"UPDATE","target_id":"c2","updated_content":"fixed","reasoning":"correction"}`)
		Expect(d.Action).To(Equal(consolidation.ActionUpdate))
		Expect(d.TargetIDs).To(Equal([]string{"c2"}))
		Expect(d.MergedContent).To(Equal("fixed"))
	})

	It("strips markdown code fences", func() {
		d := consolidation.ParseDecision("```json\n{\"action\":\"SKIP\",\"reasoning\":\"duplicate\"}\n```")
		Expect(d.Action).To(Equal(consolidation.ActionSkip))
		Expect(d.Reasoning).To(Equal("duplicate"))
	})

	It("extracts the JSON object from surrounding prose", func() {
		d := consolidation.ParseDecision(`Here you go: {"action":"UPDATE","target_id":"c2","updated_content":"fixed","reasoning":"correction"} hope that helps`)
		Expect(d.Action).To(Equal(consolidation.ActionUpdate))
	})

	It("normalizes lowercase actions", func() {
		d := consolidation.ParseDecision(`{"action":"keep_separate","reasoning":"distinct"}`)
		Expect(d.Action).To(Equal(consolidation.ActionKeepSeparate))
	})

	It("falls back to KEEP_SEPARATE on unparseable input", func() {
		d := consolidation.ParseDecision("not json")
		Expect(d.Action).To(Equal(consolidation.ActionKeepSeparate))
		Expect(d.Reasoning).To(ContainSubstring("fallback"))
	})

	It("falls back to KEEP_SEPARATE on unknown actions", func() {
		d := consolidation.ParseDecision(`{"action":"OBLITERATE","reasoning":"nope"}`)
		Expect(d.Action).To(Equal(consolidation.ActionKeepSeparate))
		Expect(d.Reasoning).To(ContainSubstring("fallback"))
	})

	It("supplies a default when reasoning is missing", func() {
		d := consolidation.ParseDecision(`{"action":"SKIP"}`)
		Expect(d.Reasoning).To(Equal("no reasoning provided"))
	})

	It("never returns nil", func() {
		for _, input := range []string{"", "null", "[]", "{}", "```"} {
			Expect(consolidation.ParseDecision(input)).NotTo(BeNil())
		}
	})
})

var _ = Describe("ShouldInsert", func() {
	It("inserts for KEEP_SEPARATE and REPLACE", func() {
		Expect(consolidation.ShouldInsert(&consolidation.Decision{Action: consolidation.ActionKeepSeparate})).To(BeTrue())
		Expect(consolidation.ShouldInsert(&consolidation.Decision{Action: consolidation.ActionReplace})).To(BeTrue())
	})

	It("does not insert for MERGE, UPDATE, and SKIP", func() {
		Expect(consolidation.ShouldInsert(&consolidation.Decision{Action: consolidation.ActionMerge})).To(BeFalse())
		Expect(consolidation.ShouldInsert(&consolidation.Decision{Action: consolidation.ActionUpdate})).To(BeFalse())
		Expect(consolidation.ShouldInsert(&consolidation.Decision{Action: consolidation.ActionSkip})).To(BeFalse())
	})

	It("does not insert for nil decisions", func() {
		Expect(consolidation.ShouldInsert(nil)).To(BeFalse())
	})
})
