package chatcmder

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/rovo/cmd/rovo/cliconfig"
	"github.com/papercomputeco/rovo/internal/tui"
	"github.com/papercomputeco/rovo/pkg/chatclient"
	"github.com/papercomputeco/rovo/pkg/chatstore"
	"github.com/papercomputeco/rovo/pkg/logger"
)

const chatLongDesc string = `Start an interactive chat with the assistant.

Opens a terminal chat against a running relay. Answers stream in as they
are generated, widgets render as cards under the answer and suggested
follow-up questions can be picked with Tab. Esc cancels the answer in
progress and Ctrl+C quits.

Examples:
  rovo chat
  rovo chat --relay http://localhost:3001 --user Sam`

const chatShortDesc string = "Start an interactive chat"

// ErrNotTerminal is returned when stdin or stdout is not a terminal.
var ErrNotTerminal = errors.New("rovo chat needs an interactive terminal, use rovo ask for scripts")

type chatCommander struct {
	flags       cliconfig.Flags
	relayURL    string
	userName    string
	contextDesc string
	logFile     string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.relayURL, "relay", "r", "", "Relay base URL (overrides config)")
	cmd.Flags().StringVar(&cmder.userName, "user", "", "Name the assistant addresses you by")
	cmd.Flags().StringVar(&cmder.contextDesc, "context", "", "Description of what you are looking at")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file while the chat is open")

	return cmd
}

func (c *chatCommander) run() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}

	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}
	relayURL := cfg.Relay.URL
	if c.relayURL != "" {
		relayURL = c.relayURL
	}

	log := zap.NewNop()
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		log = logger.NewLoggerTo(f, cfg.Log.Debug, false)
	}
	defer log.Sync()

	client := chatclient.New(relayURL, chatstore.New(), log)
	defer client.Wait()

	return tui.NewChatProgram(client, tui.Options{
		UserName:           c.userName,
		ContextDescription: c.contextDesc,
	}).Run()
}
