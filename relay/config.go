package relay

import (
	"github.com/papercomputeco/rovo/pkg/credential"
	"github.com/papercomputeco/rovo/pkg/upstream"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the full AI gateway endpoint. Its shape also decides the
	// provider payload, see upstream.ResolveProvider.
	UpstreamURL string

	// Model is sent with chat-completions payloads.
	Model string

	// MaxTokens bounds answer length; zero uses upstream.DefaultMaxTokens.
	MaxTokens int

	// Temperature is optional; nil leaves the provider default.
	Temperature *float32

	// Identity is forwarded to the gateway as identification headers.
	Identity upstream.Identity

	// Credential configures the per-call token signer.
	Credential credential.Config
}
