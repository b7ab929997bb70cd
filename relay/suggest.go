package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/upstream"
)

const maxSuggestions = 3

// handleSuggestions returns follow-up questions for a completed answer.
// Apart from malformed requests it never fails: any error yields an empty list.
func (r *Relay) handleSuggestions(c *fiber.Ctx) error {
	var req llm.SuggestionsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse suggestions request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	questions, err := r.suggest(c.Context(), &req)
	if err != nil {
		r.logger.Warn("suggested questions unavailable", zap.Error(err))
		questions = []string{}
	}

	return c.JSON(llm.SuggestionsResponse{Questions: questions})
}

func (r *Relay) suggest(ctx context.Context, req *llm.SuggestionsRequest) ([]string, error) {
	if r.config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is not configured")
	}

	token, err := r.sign(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	body, err := upstream.Payload(r.provider, r.suggestionPrompt(req))
	if err != nil {
		return nil, err
	}

	text, err := r.upstream.Complete(ctx, token, body)
	if err != nil {
		return nil, err
	}

	return parseSuggestions(text)
}

// parseSuggestions reads the model's raw JSON array, tolerating a markdown
// code fence around it. Non-string entries are dropped and at most
// maxSuggestions are kept.
func parseSuggestions(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("suggestions are not a JSON array: %w", err)
	}

	questions := make([]string, 0, maxSuggestions)
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		questions = append(questions, s)
		if len(questions) == maxSuggestions {
			break
		}
	}
	return questions, nil
}
