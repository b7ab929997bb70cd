package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/llm"
)

// maxEventSize bounds a single upstream SSE event.
const maxEventSize = 1 << 20

type bedrockStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type bedrockResponse struct {
	Content []bedrockContent `json:"content"`
}

// ExtractDelta returns the text delta carried by one stream event payload.
// ok is false for well-formed events without text (role headers, stop events).
func ExtractDelta(provider Provider, data []byte) (string, bool, error) {
	switch provider {
	case ProviderBedrock:
		var ev bedrockStreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", false, err
		}
		if ev.Type != "content_block_delta" || ev.Delta.Text == "" {
			return "", false, nil
		}
		return ev.Delta.Text, true, nil
	default:
		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			return "", false, err
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			return "", false, nil
		}
		return chunk.Choices[0].Delta.Content, true, nil
	}
}

// ExtractCompletion returns the text of a non-streaming response body.
func ExtractCompletion(provider Provider, body []byte) (string, error) {
	switch provider {
	case ProviderBedrock:
		var resp bedrockResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("unmarshal bedrock response: %w", err)
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	default:
		var resp openai.ChatCompletionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("unmarshal chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion has no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}
}

// Deltas reads an upstream SSE body incrementally and yields text deltas in
// arrival order. The [DONE] frame is dropped and reading continues until the
// body is exhausted. Frames that are not valid JSON are skipped. A read
// error is yielded once and ends the sequence.
func Deltas(provider Provider, body io.Reader, logger *zap.Logger) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cfg := &sse.ReadConfig{MaxEventSize: maxEventSize}
		for ev, err := range sse.Read(body, cfg) {
			if err != nil {
				yield("", fmt.Errorf("reading upstream stream: %w", err))
				return
			}
			if ev.Data == llm.DoneSentinel {
				continue
			}

			delta, ok, err := ExtractDelta(provider, []byte(ev.Data))
			if err != nil {
				logger.Debug("skipping malformed upstream frame",
					zap.Error(err),
					zap.Int("size", len(ev.Data)),
				)
				continue
			}
			if !ok {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}
