package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/cmd/rovo/cliconfig"
	"github.com/papercomputeco/rovo/pkg/chatclient"
	"github.com/papercomputeco/rovo/pkg/chatstore"
	"github.com/papercomputeco/rovo/pkg/logger"
)

const askLongDesc string = `Ask a single question and stream the answer to stdout.

Connects to a running relay, prints answer text as it arrives and, once
the answer is complete, prints any widget as JSON. With --suggestions the
follow-up questions are printed last.

Examples:
  rovo ask "what is blocking the release?"
  rovo ask --relay http://localhost:3001 --context "Board PROJ" "show my tasks"`

const askShortDesc string = "Ask one question and stream the answer"

type askCommander struct {
	flags       cliconfig.Flags
	relayURL    string
	userName    string
	contextDesc string
	suggestions bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.relayURL, "relay", "r", "", "Relay base URL (overrides config)")
	cmd.Flags().StringVar(&cmder.userName, "user", "", "Name the assistant addresses you by")
	cmd.Flags().StringVar(&cmder.contextDesc, "context", "", "Description of what you are looking at")
	cmd.Flags().BoolVar(&cmder.suggestions, "suggestions", false, "Print suggested follow-up questions")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, message string) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}
	relayURL := cfg.Relay.URL
	if c.relayURL != "" {
		relayURL = c.relayURL
	}

	log := zap.NewNop()
	if cfg.Log.Debug {
		log = logger.NewLoggerTo(cmd.ErrOrStderr(), true, false)
	}

	opts := []chatclient.Option{}
	if !c.suggestions {
		opts = append(opts, chatclient.WithoutSuggestions())
	}
	store := chatstore.New()
	client := chatclient.New(relayURL, store, log, opts...)

	out := cmd.OutOrStdout()
	printer := newDeltaPrinter(out)
	unsubscribe := store.Subscribe(printer.print)
	defer unsubscribe()

	id, err := client.SendTurn(ctx, chatclient.TurnRequest{
		Message:            message,
		ContextDescription: c.contextDesc,
		UserName:           c.userName,
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}

	client.Wait()
	msg, _ := store.Message(id)

	if msg.Widget != nil {
		data, err := json.MarshalIndent(msg.Widget, "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode widget: %w", err)
		}
		fmt.Fprintf(out, "\n%s\n", data)
	}
	if c.suggestions && len(msg.SuggestedQuestions) > 0 {
		fmt.Fprintln(out, "\nSuggested questions:")
		for _, q := range msg.SuggestedQuestions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}

// deltaPrinter writes the growth of each assistant message as it streams.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[string]int
}

func newDeltaPrinter(w io.Writer) *deltaPrinter {
	return &deltaPrinter{w: w, printed: make(map[string]int)}
}

func (p *deltaPrinter) print(msg chatstore.Message) {
	if msg.Type != chatstore.TypeAssistant {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.Failed {
		if p.printed[msg.ID] >= 0 {
			fmt.Fprint(p.w, "\n"+msg.Content)
			p.printed[msg.ID] = -1
		}
		return
	}

	n := p.printed[msg.ID]
	if n < 0 || len(msg.Content) <= n {
		return
	}
	fmt.Fprint(p.w, msg.Content[n:])
	p.printed[msg.ID] = len(msg.Content)
}
