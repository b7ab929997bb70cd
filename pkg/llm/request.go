package llm

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxHistory is the number of prior turns forwarded upstream with a chat request.
const MaxHistory = 6

var (
	// ErrMessageRequired is returned when a chat request carries no message.
	ErrMessageRequired = errors.New("message is required")

	// ErrAssistantResponseRequired is returned when a suggestions request has no assistant response.
	ErrAssistantResponseRequired = errors.New("assistantResponse is required")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ChatRequest is the body of POST /api/rovo-chat.
type ChatRequest struct {
	Message             string    `json:"message" validate:"required"`
	ConversationHistory []Message `json:"conversationHistory,omitempty" validate:"dive"`
	ContextDescription  string    `json:"contextDescription,omitempty"`
	UserName            string    `json:"userName,omitempty"`
}

// Validate checks the request, normalising whitespace-only messages to missing.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return ErrMessageRequired
	}
	return validate.Struct(r)
}

// TrimmedHistory returns the last MaxHistory turns in their original order.
func (r *ChatRequest) TrimmedHistory() []Message {
	return TrimHistory(r.ConversationHistory, MaxHistory)
}

// SuggestionsRequest is the body of POST /api/suggested-questions.
type SuggestionsRequest struct {
	Message             string    `json:"message"`
	ConversationHistory []Message `json:"conversationHistory,omitempty" validate:"dive"`
	AssistantResponse   string    `json:"assistantResponse" validate:"required"`
}

// Validate checks the request.
func (r *SuggestionsRequest) Validate() error {
	if strings.TrimSpace(r.AssistantResponse) == "" {
		return ErrAssistantResponseRequired
	}
	return validate.Struct(r)
}

// TrimHistory keeps the newest limit entries of history.
func TrimHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
