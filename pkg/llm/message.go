package llm

// Role values accepted in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single prior turn in a conversation.
type Message struct {
	Role    string `json:"role" validate:"oneof=user assistant"` // "user" or "assistant"
	Content string `json:"content"`                              // The message content
}
