// Package chatclient is the client side of a chat session: it sends turns
// to the relay, feeds the streamed answer into a chatstore.Store and
// decorates completed answers with suggested follow-up questions.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/chatstore"
	"github.com/papercomputeco/rovo/pkg/chatstream"
	"github.com/papercomputeco/rovo/pkg/llm"
)

const (
	chatPath        = "/api/rovo-chat"
	suggestionsPath = "/api/suggested-questions"

	// DefaultSuggestionTimeout bounds the background suggestions call.
	DefaultSuggestionTimeout = 15 * time.Second
)

// ErrTurnInFlight is returned by SendTurn while another turn of the same
// session is still streaming.
var ErrTurnInFlight = errors.New("a chat turn is already in flight")

// StatusError is a non-OK answer from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.Code)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.Code, e.Message)
}

// TurnRequest is one user message with its optional product context.
type TurnRequest struct {
	Message            string
	ContextDescription string
	UserName           string
}

// Client is one chat session against a relay.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	store             *chatstore.Store
	logger            *zap.Logger
	suggestionTimeout time.Duration
	suggestions       bool

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for relay calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithSuggestionTimeout overrides DefaultSuggestionTimeout.
func WithSuggestionTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.suggestionTimeout = d
	}
}

// WithoutSuggestions disables the follow-up questions fetched after each turn.
func WithoutSuggestions() Option {
	return func(cl *Client) {
		cl.suggestions = false
	}
}

// New creates a session against the relay at baseURL writing into store.
func New(baseURL string, store *chatstore.Store, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        &http.Client{},
		store:             store,
		logger:            logger,
		suggestionTimeout: DefaultSuggestionTimeout,
		suggestions:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the session's conversation.
func (c *Client) Store() *chatstore.Store {
	return c.store
}

// InFlight reports whether a turn is streaming.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Cancel aborts the in-flight turn, if any. The turn keeps its partial content.
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until background suggestion calls have finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// SendTurn sends one user message and streams the answer into the store.
// It returns the assistant message ID once the turn has ended. A failed or
// cancelled turn still leaves a finished assistant message behind; its
// cause is returned as the error.
func (c *Client) SendTurn(ctx context.Context, req TurnRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", llm.ErrMessageRequired
	}

	turnCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		cancel()
		return "", ErrTurnInFlight
	}
	c.inFlight = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	history := c.store.History(llm.MaxHistory)
	c.store.AddUserMessage(message)

	consumer := chatstream.NewConsumer(c.store, c.logger)
	err := c.stream(turnCtx, consumer, llm.ChatRequest{
		Message:             message,
		ConversationHistory: history,
		ContextDescription:  req.ContextDescription,
		UserName:            req.UserName,
	})
	id := consumer.MessageID()

	if consumer.State() == chatstream.StateComplete && c.suggestions {
		answer, _ := c.store.Message(id)
		c.suggestAsync(id, llm.SuggestionsRequest{
			Message:             message,
			ConversationHistory: history,
			AssistantResponse:   answer.Content,
		})
	}
	return id, err
}

func (c *Client) stream(ctx context.Context, consumer *chatstream.Consumer, req llm.ChatRequest) error {
	resp, err := c.post(ctx, chatPath, req)
	if err != nil {
		if ctx.Err() != nil {
			consumer.Cancel()
			return ctx.Err()
		}
		consumer.Fail(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := readStatusError(resp)
		consumer.Fail(err)
		return err
	}

	c.logger.Debug("relay stream opened", zap.Int("history_count", len(req.ConversationHistory)))
	return consumer.Consume(ctx, resp.Body)
}

// suggestAsync fetches follow-up questions in the background. The call is
// detached from the turn's cancellation and bounded by suggestionTimeout;
// failures leave the message untouched.
func (c *Client) suggestAsync(id string, req llm.SuggestionsRequest) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.suggestionTimeout)
		defer cancel()

		questions, err := c.Suggestions(ctx, req)
		if err != nil {
			c.logger.Debug("suggested questions unavailable", zap.Error(err))
			return
		}
		c.store.SetSuggestions(id, questions)
	}()
}

// Suggestions asks the relay for follow-up questions to an answer.
func (c *Client) Suggestions(ctx context.Context, req llm.SuggestionsRequest) ([]string, error) {
	resp, err := c.post(ctx, suggestionsPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var out llm.SuggestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return out.Questions, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	return resp, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope llm.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == "" {
		return &StatusError{Code: resp.StatusCode}
	}
	return &StatusError{Code: resp.StatusCode, Message: envelope.Error}
}
