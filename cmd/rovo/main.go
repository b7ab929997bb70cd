package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/rovo/cmd/rovo/ask"
	chatcmder "github.com/papercomputeco/rovo/cmd/rovo/chat"
	servecmder "github.com/papercomputeco/rovo/cmd/rovo/serve"
	tokencmder "github.com/papercomputeco/rovo/cmd/rovo/token"
)

const rovoLongDesc string = `rovo is a streaming chat relay for an AI gateway.

Run the relay with "rovo serve", then talk to it with "rovo chat" or
script it with "rovo ask".`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rovo",
		Short:         "Streaming chat relay for an AI gateway",
		Long:          rovoLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(tokencmder.NewTokenCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
