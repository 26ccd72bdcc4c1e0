package extraction_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/extraction"
	testutils "github.com/loomworks/engram/pkg/utils/test"
)

// recordingStorer collects stored items and optionally fails on matching text.
type recordingStorer struct {
	mu     sync.Mutex
	items  []extraction.ExtractedItem
	paths  []string
	failOn string
}

func (r *recordingStorer) Store(_ context.Context, item extraction.ExtractedItem, sourcePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && item.Text == r.failOn {
		return errors.New("storage failure")
	}
	r.items = append(r.items, item)
	r.paths = append(r.paths, sourcePath)
	return nil
}

func (r *recordingStorer) stored() []extraction.ExtractedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]extraction.ExtractedItem(nil), r.items...)
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx            context.Context
		tmpDir         string
		transcriptPath string
		caller         *testutils.MockCaller
		gate           *testutils.MockBudgetGate
		storer         *recordingStorer
		cfg            extraction.Config
	)

	newOrchestrator := func() *extraction.Orchestrator {
		return extraction.NewOrchestrator(caller, gate, storer, cfg, nil)
	}

	resultFor := func(results []extraction.StrategyResult, name string) extraction.StrategyResult {
		for _, r := range results {
			if r.Strategy == name {
				return r
			}
		}
		Fail("missing strategy result " + name)
		return extraction.StrategyResult{}
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "orchestrator-test-*")
		Expect(err).NotTo(HaveOccurred())

		transcriptPath = filepath.Join(tmpDir, "session.jsonl")
		transcript := `{"role":"user","content":"my app crashes with OOM on startup"}
{"role":"assistant","content":"raise the container memory limit to 2Gi"}
`
		Expect(os.WriteFile(transcriptPath, []byte(transcript), 0o600)).To(Succeed())

		caller = testutils.NewMockCaller(`[]`)
		gate = &testutils.MockBudgetGate{Allow: true}
		storer = &recordingStorer{}
		cfg = extraction.DefaultConfig()
		cfg.Enabled = true
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("is a no-op when disabled", func() {
		cfg.Enabled = false

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeNil())
		Expect(caller.CallCount()).To(BeZero())
		Expect(gate.Checks()).To(BeZero())
	})

	It("fails the run when the transcript cannot be read", func() {
		_, err := newOrchestrator().RunAutoMemorize(ctx, filepath.Join(tmpDir, "missing.jsonl"))
		Expect(err).To(HaveOccurred())
		Expect(caller.CallCount()).To(BeZero())
	})

	It("settles all three strategies", func() {
		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Strategies).To(HaveLen(3))
		Expect(caller.CallCount()).To(Equal(3))
	})

	It("tags every strategy call with the consolidation task", func() {
		_, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())

		Expect(caller.Tasks).To(HaveLen(3))
		for _, task := range caller.Tasks {
			Expect(task).To(Equal("consolidation"))
		}
	})

	It("treats a malformed model response as nothing found, not a failure", func() {
		caller.Response = "Sorry, I cannot produce JSON today."

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Strategies).To(HaveLen(3))
		for _, r := range run.Strategies {
			Expect(r.Err).To(BeEmpty())
			Expect(r.Extracted).To(BeEmpty())
		}
		Expect(run.TotalExtracted).To(BeZero())
	})

	It("aggregates totals and wall-clock duration across strategies", func() {
		caller.Response = `[{"problem":"p","solution":"s","category":"c","fact":"f","type":"t","name":"n","description":"d"}]`

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())

		Expect(run.SourcePath).To(Equal(transcriptPath))
		Expect(run.TotalExtracted).To(Equal(3))
		Expect(run.TotalStored).To(Equal(3))
		Expect(run.Duration).To(BeNumerically(">", 0))
	})

	It("stores extracted items under their strategy's area", func() {
		// One canned object carrying every strategy's required fields, so
		// each parser extracts exactly one item from it.
		caller.Response = `[{"problem":"OOM on startup","solution":"raise memory limit to 2Gi",` +
			`"category":"infra","fact":"container limit is 2Gi",` +
			`"type":"command","name":"kubectl","description":"checked pod limits"}]`

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())

		solutions := resultFor(run.Strategies, "solutions")
		Expect(solutions.Stored).To(Equal(1))
		Expect(solutions.Extracted[0].Text).To(HavePrefix("Problem: "))

		stored := storer.stored()
		Expect(stored).To(HaveLen(3))
	})

	It("skips everything with rate_limit when the budget is denied", func() {
		gate.Allow = false

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Strategies).To(HaveLen(3))
		for _, r := range run.Strategies {
			Expect(r.SkipReason).To(Equal("rate_limit"))
			Expect(r.Stored).To(BeZero())
		}
		Expect(caller.CallCount()).To(BeZero())
	})

	It("lets one failing strategy settle without sinking the others", func() {
		// Drive the failure through storage: the response is valid for all
		// three parsers, but the solutions item refuses to store.
		caller.Err = nil
		caller.Response = `[{"problem":"p","solution":"s","category":"c","fact":"f","type":"t","name":"n","description":"d"}]`
		storer.failOn = "Problem: p\nSolution: s"

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Strategies).To(HaveLen(3))

		solutions := resultFor(run.Strategies, "solutions")
		Expect(solutions.Stored).To(BeZero())
		Expect(solutions.Skipped).To(Equal(1))

		fragments := resultFor(run.Strategies, "fragments")
		Expect(fragments.Stored).To(Equal(1))
	})

	It("reports a strategy error when the model call fails", func() {
		caller.Err = errors.New("model unavailable")

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Strategies).To(HaveLen(3))
		for _, r := range run.Strategies {
			Expect(r.Err).To(ContainSubstring("model unavailable"))
		}
	})

	It("passes the transcript path through to the storer", func() {
		caller.Response = `[{"category":"c","fact":"f","problem":"p","solution":"s","type":"t","name":"n","description":"d"}]`

		_, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())

		storer.mu.Lock()
		defer storer.mu.Unlock()
		for _, p := range storer.paths {
			Expect(p).To(Equal(transcriptPath))
		}
	})

	It("derives solutions from an OOM conversation", func() {
		caller.Response = `[{"problem":"app crashes with OOM on startup","solution":"raise the container memory limit to 2Gi","importance":0.9}]`

		run, err := newOrchestrator().RunAutoMemorize(ctx, transcriptPath)
		Expect(err).NotTo(HaveOccurred())

		solutions := resultFor(run.Strategies, "solutions")
		Expect(solutions.Extracted).To(HaveLen(1))
		Expect(solutions.Extracted[0].Text).To(HavePrefix("Problem: "))
		Expect(solutions.Extracted[0].Area).To(BeEquivalentTo("solutions"))
	})
})
