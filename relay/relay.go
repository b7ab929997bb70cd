// Package relay provides the chat relay: an HTTP server that signs a
// short-lived credential per turn, forwards the turn to the AI gateway and
// re-streams the answer to the browser with any inline widget payload held
// back until the end of the stream.
package relay

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/credential"
	"github.com/papercomputeco/rovo/pkg/upstream"
)

// TokenSource mints the bearer credential for one upstream call.
type TokenSource interface {
	Sign(ctx context.Context) (string, error)
}

// Relay is the stateless chat relay. Each request builds its own credential
// and payload; nothing is shared across requests besides configuration.
type Relay struct {
	config     Config
	provider   upstream.Provider
	upstream   *upstream.Client
	signer     TokenSource
	signerErr  error
	httpClient *http.Client
	logger     *zap.Logger
	server     *fiber.App
	now        func() time.Time
}

// Option customises a Relay.
type Option func(*Relay)

// WithTokenSource replaces the signer built from Config.Credential.
func WithTokenSource(ts TokenSource) Option {
	return func(r *Relay) {
		r.signer = ts
		r.signerErr = nil
	}
}

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) {
		r.httpClient = c
	}
}

// WithClock overrides the clock used in prompts and diagnostics.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

// New creates a new Relay. Missing signing configuration does not fail
// construction: the relay still serves health endpoints and answers chat
// turns with an authentication error.
func New(config Config, logger *zap.Logger, opts ...Option) *Relay {
	r := &Relay{
		config:   config,
		provider: upstream.ResolveProvider(config.UpstreamURL),
		logger:   logger,
		now:      time.Now,
	}

	signer, err := credential.NewSigner(config.Credential)
	if err != nil {
		r.signerErr = err
		logger.Error("credential signer unavailable", zap.Error(err))
	} else {
		r.signer = signer
	}

	for _, opt := range opts {
		opt(r)
	}

	r.upstream = upstream.NewClient(config.UpstreamURL, r.provider, config.Identity, r.httpClient, logger)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestLogger(logger))

	app.Post("/api/rovo-chat", r.handleChat)
	app.Post("/api/suggested-questions", r.handleSuggestions)

	app.Get("/healthcheck", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Get("/api/health", r.handleHealth)

	r.server = app
	return r
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
		zap.String("provider", r.provider.String()),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// Serve runs the relay on an existing listener.
func (r *Relay) Serve(ln net.Listener) error {
	return r.server.Listener(ln)
}

// Handler exposes the relay as a net/http handler for embedding in other muxes.
// Responses are delivered once the turn completes; use Listen or Serve when
// clients need frames as they arrive.
func (r *Relay) Handler() http.HandlerFunc {
	return adaptor.FiberApp(r.server)
}

// Provider returns the provider resolved at startup.
func (r *Relay) Provider() upstream.Provider {
	return r.provider
}

// Shutdown stops accepting connections and waits for in-flight streams.
func (r *Relay) Shutdown(ctx context.Context) error {
	return r.server.ShutdownWithContext(ctx)
}
