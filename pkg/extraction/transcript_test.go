package extraction_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/engram/pkg/extraction"
)

var _ = Describe("ReadTranscript", func() {
	var tmpDir string

	writeTranscript := func(lines ...string) string {
		path := filepath.Join(tmpDir, "session.jsonl")
		content := strings.Join(lines, "\n")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "transcript-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("keeps user and assistant messages in order", func() {
		path := writeTranscript(
			`{"role":"user","content":"my app crashes with OOM"}`,
			`{"role":"assistant","content":"raise the heap limit"}`,
		)

		messages, err := extraction.ReadTranscript(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].Role).To(Equal("user"))
		Expect(messages[1].Role).To(Equal("assistant"))
	})

	It("drops system and tool messages", func() {
		path := writeTranscript(
			`{"role":"system","content":"you are helpful"}`,
			`{"role":"tool","content":"ran tests"}`,
			`{"role":"user","content":"hello"}`,
		)

		messages, err := extraction.ReadTranscript(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(1))
		Expect(messages[0].Role).To(Equal("user"))
	})

	It("drops empty-content messages", func() {
		path := writeTranscript(
			`{"role":"user","content":"  "}`,
			`{"role":"assistant","content":"real content"}`,
		)

		messages, err := extraction.ReadTranscript(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(1))
	})

	It("skips malformed lines instead of failing", func() {
		path := writeTranscript(
			`{"role":"user","content":"good line"}`,
			`{{{ broken`,
			``,
			`{"role":"assistant","content":"another good line"}`,
		)

		messages, err := extraction.ReadTranscript(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(2))
	})

	It("errors when the file does not exist", func() {
		_, err := extraction.ReadTranscript(filepath.Join(tmpDir, "missing.jsonl"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BuildTranscript", func() {
	It("renders role-prefixed lines", func() {
		out := extraction.BuildTranscript([]extraction.Message{
			{Role: "user", Content: "question"},
			{Role: "assistant", Content: "answer"},
		}, 0)
		Expect(out).To(Equal("user: question\nassistant: answer"))
	})

	It("returns empty for no messages", func() {
		Expect(extraction.BuildTranscript(nil, 1000)).To(BeEmpty())
	})

	It("keeps the most recent messages when over budget", func() {
		messages := []extraction.Message{
			{Role: "user", Content: strings.Repeat("a", 200)},
			{Role: "assistant", Content: "recent answer"},
		}

		out := extraction.BuildTranscript(messages, 30)
		Expect(out).To(ContainSubstring("recent answer"))
		Expect(len(out)).To(BeNumerically("<=", 30))
	})

	It("truncates the oldest surviving message with a marker", func() {
		messages := []extraction.Message{
			{Role: "user", Content: strings.Repeat("x", 500)},
			{Role: "assistant", Content: "short"},
		}

		out := extraction.BuildTranscript(messages, 120)
		Expect(out).To(HavePrefix("..."))
		Expect(out).To(ContainSubstring("assistant: short"))
		Expect(len(out)).To(BeNumerically("<=", 120))
	})

	It("drops a partial too small to be useful", func() {
		messages := []extraction.Message{
			{Role: "user", Content: strings.Repeat("x", 500)},
			{Role: "assistant", Content: "tail"},
		}

		// Budget covers the tail with only a few chars to spare.
		out := extraction.BuildTranscript(messages, len("assistant: tail")+10)
		Expect(out).To(Equal("assistant: tail"))
	})
})
