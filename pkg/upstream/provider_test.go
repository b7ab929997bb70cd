package upstream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rovo/pkg/upstream"
)

var _ = Describe("ResolveProvider", func() {
	DescribeTable("selects the payload shape from the gateway URL",
		func(url string, expected upstream.Provider) {
			Expect(upstream.ResolveProvider(url)).To(Equal(expected))
		},
		Entry("bedrock path", "https://ai-gateway.example.net/v1/bedrock/model/claude/invoke-with-response-stream", upstream.ProviderBedrock),
		Entry("bedrock host", "https://bedrock-runtime.us-east-1.amazonaws.com/model/x", upstream.ProviderBedrock),
		Entry("invoke suffix", "https://gateway.example.net/model/anthropic.claude/invoke", upstream.ProviderBedrock),
		Entry("upper case", "https://GATEWAY.example.net/BEDROCK/x", upstream.ProviderBedrock),
		Entry("openai path", "https://ai-gateway.example.net/v1/openai/v1/chat/completions", upstream.ProviderChatCompletions),
		Entry("plain host", "http://localhost:8080", upstream.ProviderChatCompletions),
		Entry("empty", "", upstream.ProviderChatCompletions),
	)

	It("names providers", func() {
		Expect(upstream.ProviderBedrock.String()).To(Equal("bedrock"))
		Expect(upstream.ProviderChatCompletions.String()).To(Equal("chat-completions"))
	})
})
