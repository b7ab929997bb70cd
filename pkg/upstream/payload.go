package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/rovo/pkg/llm"
)

const (
	// BedrockAnthropicVersion is sent as anthropic_version in Bedrock payloads.
	BedrockAnthropicVersion = "bedrock-2023-05-31"

	// DefaultMaxTokens bounds generated tokens when a prompt sets none.
	DefaultMaxTokens = 2000
)

// Prompt is the provider-neutral content of one upstream call.
type Prompt struct {
	// System is the system prompt.
	System string

	// History holds prior turns, oldest first.
	History []llm.Message

	// Message is the current user turn, already prefixed with any context.
	Message string

	// Model is the chat-completions model name; unused by Bedrock.
	Model string

	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int

	// Temperature is omitted for reasoning models.
	Temperature *float32

	// Stream requests a server-sent-events response.
	Stream bool
}

// Payload renders prompt as the request body for provider.
func Payload(provider Provider, prompt Prompt) ([]byte, error) {
	if prompt.MaxTokens <= 0 {
		prompt.MaxTokens = DefaultMaxTokens
	}

	var body any
	switch provider {
	case ProviderBedrock:
		body = bedrockPayload(prompt)
	case ProviderChatCompletions:
		body = chatCompletionsPayload(prompt)
	default:
		return nil, fmt.Errorf("unknown provider %d", provider)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", provider, err)
	}
	return data, nil
}

func chatCompletionsPayload(prompt Prompt) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.System,
	})
	for _, m := range prompt.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.Message,
	})

	req := openai.ChatCompletionRequest{
		Model:    prompt.Model,
		Messages: messages,
		Stream:   prompt.Stream,
	}

	// Reasoning models reject max_tokens and any non-default temperature.
	if isReasoningModel(prompt.Model) {
		req.MaxCompletionTokens = prompt.MaxTokens
	} else {
		req.MaxTokens = prompt.MaxTokens
		if prompt.Temperature != nil {
			req.Temperature = *prompt.Temperature
		}
	}
	return req
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      *float32         `json:"temperature,omitempty"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// bedrockPayload sends exactly one user message. Prior turns are folded
// into its text as a transcript.
func bedrockPayload(prompt Prompt) bedrockRequest {
	return bedrockRequest{
		AnthropicVersion: BedrockAnthropicVersion,
		MaxTokens:        prompt.MaxTokens,
		System:           prompt.System,
		Messages: []bedrockMessage{{
			Role:    llm.RoleUser,
			Content: []bedrockContent{{Type: "text", Text: bedrockText(prompt.History, prompt.Message)}},
		}},
		Temperature: prompt.Temperature,
	}
}

func bedrockText(history []llm.Message, message string) string {
	if len(history) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		speaker := "User"
		if m.Role == llm.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	b.WriteString("\n")
	b.WriteString(message)
	return b.String()
}
