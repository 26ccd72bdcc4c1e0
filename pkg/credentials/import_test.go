package credentials

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extractCodexAPIKey", func() {
	It("extracts the OpenAI key", func() {
		key, ok := extractCodexAPIKey([]byte(`{"OPENAI_API_KEY":"sk-abc","tokens":{"access_token":"x"}}`))
		Expect(ok).To(BeTrue())
		Expect(key).To(Equal("sk-abc"))
	})

	It("reports absence when the key is missing", func() {
		_, ok := extractCodexAPIKey([]byte(`{"tokens":{"access_token":"x"}}`))
		Expect(ok).To(BeFalse())
	})

	It("rejects malformed JSON", func() {
		_, ok := extractCodexAPIKey([]byte(`not json`))
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("extractOpenCodeAPIKey", func() {
	authJSON := []byte(`{
		"anthropic": {"type": "api", "key": "sk-ant-xyz"},
		"openai": {"type": "oauth", "access": "tok"}
	}`)

	It("extracts api-type keys", func() {
		key, ok := extractOpenCodeAPIKey(authJSON, "anthropic")
		Expect(ok).To(BeTrue())
		Expect(key).To(Equal("sk-ant-xyz"))
	})

	It("ignores oauth entries", func() {
		_, ok := extractOpenCodeAPIKey(authJSON, "openai")
		Expect(ok).To(BeFalse())
	})

	It("reports absence for unknown providers", func() {
		_, ok := extractOpenCodeAPIKey(authJSON, "mistral")
		Expect(ok).To(BeFalse())
	})
})
