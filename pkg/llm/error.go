// Package llm provides the wire representations exchanged between the chat
// client and the relay: turn requests, relayed stream frames and error envelopes.
package llm

// ErrorResponse is the JSON envelope returned for every failed relay request.
type ErrorResponse struct {
	Error string `json:"error"`

	// Status carries the upstream HTTP status when the failure came from the AI gateway.
	Status int `json:"status,omitempty"`
}
