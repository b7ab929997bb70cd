package llm

// SuggestionsResponse is the body returned by POST /api/suggested-questions.
// Questions is never nil so it always encodes as a JSON array.
type SuggestionsResponse struct {
	Questions []string `json:"questions"`
}
