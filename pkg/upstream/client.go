package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Identification headers sent with every gateway call.
const (
	HeaderUseCaseID = "X-Atlassian-UseCaseId"
	HeaderCloudID   = "X-Atlassian-CloudId"
	HeaderUserID    = "X-Atlassian-UserId"
)

// maxErrorPreview caps how much of an error body is kept for logging.
const maxErrorPreview = 2048

// Identity holds the tenant and use-case identifiers the gateway expects.
type Identity struct {
	UseCaseID string
	CloudID   string
	UserID    string
}

// StatusError is returned when the gateway answers with a non-2xx status.
// Body is a capped preview meant for server-side logs only.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.Code)
}

// Client issues authenticated calls to one gateway endpoint.
type Client struct {
	url        string
	provider   Provider
	identity   Identity
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. A nil httpClient gets a client with a timeout
// suited to long streamed answers.
func NewClient(url string, provider Provider, identity Identity, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			// Streams can run for minutes on long answers
			Timeout: 5 * time.Minute,
		}
	}
	return &Client{
		url:        url,
		provider:   provider,
		identity:   identity,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Stream posts body and returns the open SSE response body. The caller must
// close it.
func (c *Client) Stream(ctx context.Context, token string, body []byte) (io.ReadCloser, error) {
	resp, err := c.do(ctx, token, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Complete posts a non-streaming body and returns the completion text.
func (c *Client) Complete(ctx context.Context, token string, body []byte) (string, error) {
	resp, err := c.do(ctx, token, body, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return ExtractCompletion(c.provider, data)
}

func (c *Client) do(ctx context.Context, token string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "bearer "+token)
	setIfPresent(req.Header, HeaderUseCaseID, c.identity.UseCaseID)
	setIfPresent(req.Header, HeaderCloudID, c.identity.CloudID)
	setIfPresent(req.Header, HeaderUserID, c.identity.UserID)

	c.logger.Debug("forwarding request to upstream",
		zap.String("url", c.url),
		zap.String("provider", c.provider.String()),
		zap.Int("body_size", len(body)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPreview))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(preview)}
	}
	return resp, nil
}

func setIfPresent(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
