package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/upstream"
	"github.com/papercomputeco/rovo/pkg/widget"
)

const suggestionMaxTokens = 200

// systemPrompt describes the assistant's capabilities and the widget
// protocol, grounded with the current time and, when known, the user's name.
func systemPrompt(now time.Time, userName string) string {
	var b strings.Builder
	b.WriteString(`You are Rovo, an AI teammate embedded in a work management and documentation suite.
You help people find work items, summarise pages, answer questions about their projects and plan next steps.

Response guidelines:
- Be concise, friendly and specific. Use markdown for lists and emphasis.
- If you are unsure about something, say so.
- When the answer lists work items, write a short natural-language answer first, then append `)
	b.WriteString(widget.Sentinel)
	b.WriteString(` immediately followed by a single JSON object of the form
  {"type":"work-items","data":{"items":[{"key":"PROJ-1","summary":"...","status":"To Do","assignee":"..."}]}}
  Write nothing after the JSON object.
`)
	fmt.Fprintf(&b, "\nCurrent date and time: %s\n", now.UTC().Format("Monday, January 2, 2006 15:04 MST"))
	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&b, "You are talking to %s. Address them by name when it feels natural.\n", name)
	}
	return b.String()
}

// userMessage prefixes the question with the product context the user is looking at.
func userMessage(message, contextDescription string) string {
	contextDescription = strings.TrimSpace(contextDescription)
	if contextDescription == "" {
		return message
	}
	return fmt.Sprintf("Context: %s\n\nUser question: %s", contextDescription, message)
}

func (r *Relay) chatPrompt(req *llm.ChatRequest) upstream.Prompt {
	return upstream.Prompt{
		System:      systemPrompt(r.now(), req.UserName),
		History:     req.TrimmedHistory(),
		Message:     userMessage(req.Message, req.ContextDescription),
		Model:       r.config.Model,
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
		Stream:      true,
	}
}

const suggestionSystemPrompt = `You generate follow-up questions for a chat assistant.
Return exactly 3 short follow-up questions the user is likely to ask next, each between 20 and 40 characters.
Respond with a raw JSON array of strings only: no markdown, no numbering, no explanation.`

func (r *Relay) suggestionPrompt(req *llm.SuggestionsRequest) upstream.Prompt {
	var b strings.Builder
	if q := strings.TrimSpace(req.Message); q != "" {
		fmt.Fprintf(&b, "User question: %s\n\n", q)
	}
	fmt.Fprintf(&b, "Assistant answer: %s\n\nSuggest 3 follow-up questions as a JSON array.", visibleAnswer(req.AssistantResponse))

	return upstream.Prompt{
		System:    suggestionSystemPrompt,
		History:   llm.TrimHistory(req.ConversationHistory, llm.MaxHistory),
		Message:   b.String(),
		Model:     r.config.Model,
		MaxTokens: suggestionMaxTokens,
		Stream:    false,
	}
}

// visibleAnswer drops any widget payload from an assistant answer.
func visibleAnswer(answer string) string {
	if i := strings.Index(answer, widget.Sentinel); i >= 0 {
		answer = answer[:i]
	}
	return strings.TrimSpace(answer)
}
