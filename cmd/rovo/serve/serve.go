package servecmder

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/cmd/rovo/cliconfig"
	"github.com/papercomputeco/rovo/pkg/logger"
	"github.com/papercomputeco/rovo/relay"
)

const serveLongDesc string = `Run the chat relay server.

The relay accepts chat turns on POST /api/rovo-chat, signs a short-lived
credential for each one and streams the gateway's answer back as
server-sent events. Follow-up questions are served on
POST /api/suggested-questions and configuration health on GET /api/health.

Gateway settings come from the config file and the AI_GATEWAY_* and
ASAP_* environment variables.

Examples:
  rovo serve
  rovo serve --listen :8080 --upstream https://gateway.example.net/v1/chat/completions`

const serveShortDesc string = "Run the chat relay server"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	flags       cliconfig.Flags
	listenAddr  string
	upstreamURL string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().StringVarP(&cmder.upstreamURL, "upstream", "u", "", "AI gateway endpoint URL (overrides config)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}
	if c.listenAddr != "" {
		cfg.Relay.Listen = c.listenAddr
	}
	if c.upstreamURL != "" {
		cfg.Gateway.URL = c.upstreamURL
	}

	relayConfig, err := cfg.RelayConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Log.Debug)
	defer log.Sync()

	log.Info("rovo relay starting",
		zap.String("listen", relayConfig.ListenAddr),
		zap.String("upstream", relayConfig.UpstreamURL),
		zap.Bool("debug", cfg.Log.Debug),
	)
	if relayConfig.UpstreamURL == "" {
		log.Warn("no AI gateway URL configured, chat requests will fail")
	}

	r := relay.New(relayConfig, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
