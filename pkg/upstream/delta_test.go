package upstream_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/upstream"
)

func collect(provider upstream.Provider, stream string) ([]string, error) {
	var deltas []string
	for d, err := range upstream.Deltas(provider, strings.NewReader(stream), zap.NewNop()) {
		if err != nil {
			return deltas, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

type failingReader struct{ data *strings.Reader }

func (r failingReader) Read(p []byte) (int, error) {
	n, err := r.data.Read(p)
	if err != nil {
		return n, errors.New("connection reset")
	}
	return n, nil
}

var _ = Describe("ExtractDelta", func() {
	It("reads choices[0].delta.content for chat completions", func() {
		d, ok, err := upstream.ExtractDelta(upstream.ProviderChatCompletions,
			[]byte(`{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal("Hi"))
	})

	It("reports role-only chunks as empty", func() {
		_, ok, err := upstream.ExtractDelta(upstream.ProviderChatCompletions,
			[]byte(`{"choices":[{"index":0,"delta":{"role":"assistant"}}]}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("reads content_block_delta text for bedrock", func() {
		d, ok, err := upstream.ExtractDelta(upstream.ProviderBedrock,
			[]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal("Hi"))
	})

	It("ignores other bedrock events", func() {
		_, ok, err := upstream.ExtractDelta(upstream.ProviderBedrock, []byte(`{"type":"message_start"}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("fails on malformed JSON", func() {
		_, _, err := upstream.ExtractDelta(upstream.ProviderChatCompletions, []byte(`{"choices":`))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ExtractCompletion", func() {
	It("returns the first choice message for chat completions", func() {
		text, err := upstream.ExtractCompletion(upstream.ProviderChatCompletions,
			[]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"[\"a\"]"}}]}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`["a"]`))
	})

	It("joins text blocks for bedrock", func() {
		text, err := upstream.ExtractCompletion(upstream.ProviderBedrock,
			[]byte(`{"content":[{"type":"text","text":"one "},{"type":"text","text":"two"}]}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("one two"))
	})

	It("fails without choices", func() {
		_, err := upstream.ExtractCompletion(upstream.ProviderChatCompletions, []byte(`{"choices":[]}`))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Deltas", func() {
	It("yields deltas in order, dropping [DONE] and malformed frames", func() {
		stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
			"data: {not json\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n" +
			"data: [DONE]\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n"

		deltas, err := collect(upstream.ProviderChatCompletions, stream)

		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"Hi", " there", "!"}))
	})

	It("parses bedrock event streams", func() {
		stream := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n" +
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

		deltas, err := collect(upstream.ProviderBedrock, stream)

		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"Hello"}))
	})

	It("surfaces read errors", func() {
		stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" + "data: {\"choi"

		var got []string
		var readErr error
		for d, err := range upstream.Deltas(upstream.ProviderChatCompletions,
			failingReader{strings.NewReader(stream)}, zap.NewNop()) {
			if err != nil {
				readErr = err
				break
			}
			got = append(got, d)
		}
		Expect(got).To(Equal([]string{"Hi"}))
		Expect(readErr).To(HaveOccurred())
	})
})
