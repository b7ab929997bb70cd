package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/logger"
	"github.com/papercomputeco/rovo/pkg/upstream"
)

// Error envelopes returned to clients. They never carry upstream bodies.
const (
	errConfiguration = "Server configuration error"
	errAuthFailed    = "Authentication failed"
	errInternal      = "Internal server error"
	errUpstream      = "Upstream request failed"
)

// handleChat relays one chat turn. Every failure before the first byte of
// the stream is reported with a status code; once SSE headers are sent a
// failure can only end the stream early, always with a final [DONE].
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		r.logger.Debug("rejected chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	r.logger.Debug("received chat request",
		zap.String("message_preview", logger.Truncate(req.Message, 100)),
		zap.Int("history_count", len(req.ConversationHistory)),
		zap.Bool("has_context", req.ContextDescription != ""),
	)

	if r.config.UpstreamURL == "" {
		r.logger.Error("upstream URL is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errConfiguration})
	}

	token, err := r.sign(c.Context())
	if err != nil {
		r.logger.Error("failed to sign upstream credential", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errAuthFailed})
	}

	body, err := upstream.Payload(r.provider, r.chatPrompt(&req))
	if err != nil {
		r.logger.Error("failed to build upstream payload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errInternal})
	}

	stream, err := r.upstream.Stream(c.Context(), token, body)
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			r.logger.Error("upstream returned error",
				zap.Int("status", statusErr.Code),
				zap.String("body", logger.Truncate(statusErr.Body, 500)),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
				Error:  errUpstream,
				Status: statusErr.Code,
			})
		}
		r.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: errInternal})
	}

	// Set up streaming response headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		r.relayStream(w, stream, startTime)
	}))

	return nil
}

// sign mints the credential for one call.
func (r *Relay) sign(ctx context.Context) (string, error) {
	if r.signer == nil {
		if r.signerErr != nil {
			return "", r.signerErr
		}
		return "", errors.New("no credential signer configured")
	}
	return r.signer.Sign(ctx)
}
