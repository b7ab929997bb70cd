// Package upstream speaks to the AI gateway: it builds provider-shaped request
// bodies, issues authenticated calls and extracts text deltas from the
// provider-specific stream format.
package upstream

import (
	"net/url"
	"strings"
)

// Provider selects the request and stream shapes used with the gateway.
type Provider int

const (
	// ProviderChatCompletions is the OpenAI-style chat-completions shape.
	ProviderChatCompletions Provider = iota

	// ProviderBedrock is the Anthropic-on-Bedrock messages shape.
	ProviderBedrock
)

func (p Provider) String() string {
	switch p {
	case ProviderBedrock:
		return "bedrock"
	default:
		return "chat-completions"
	}
}

// ResolveProvider picks the provider for a gateway URL. It is meant to be
// called once at startup; the result is fixed for the life of the relay.
func ResolveProvider(rawURL string) Provider {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return ProviderChatCompletions
	}

	u, err := url.Parse(lower)
	if err != nil {
		if strings.Contains(lower, "bedrock") {
			return ProviderBedrock
		}
		return ProviderChatCompletions
	}

	if strings.Contains(u.Host, "bedrock") || strings.Contains(u.Path, "bedrock") {
		return ProviderBedrock
	}
	path := strings.TrimRight(u.Path, "/")
	if strings.HasSuffix(path, "/invoke") || strings.HasSuffix(path, "/invoke-with-response-stream") {
		return ProviderBedrock
	}
	return ProviderChatCompletions
}
