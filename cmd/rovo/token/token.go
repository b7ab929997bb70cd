package tokencmder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rovo/cmd/rovo/cliconfig"
	"github.com/papercomputeco/rovo/pkg/credential"
)

const tokenLongDesc string = `Sign a gateway credential with the configured key.

Prints the token the relay would send upstream for a single call. With
--claims the token is verified against the key's public half and its
claims are printed instead, which helps check issuer, key id and
audience settings without calling the gateway.

Examples:
  rovo token
  rovo token --claims`

const tokenShortDesc string = "Sign and print a gateway credential"

type tokenCommander struct {
	flags  cliconfig.Flags
	claims bool
}

type tokenClaims struct {
	KeyID     string   `json:"kid"`
	Issuer    string   `json:"iss"`
	Subject   string   `json:"sub"`
	Audience  []string `json:"aud"`
	ID        string   `json:"jti"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}

func NewTokenCmd() *cobra.Command {
	cmder := &tokenCommander{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: tokenShortDesc,
		Long:  tokenLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().BoolVar(&cmder.claims, "claims", false, "Print the verified claims instead of the token")

	return cmd
}

func (c *tokenCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}
	credConfig, err := cfg.Credential()
	if err != nil {
		return err
	}

	signer, err := credential.NewSigner(credConfig)
	if err != nil {
		return fmt.Errorf("could not create signer: %w", err)
	}

	token, err := signer.Sign(ctx)
	if err != nil {
		return err
	}

	if !c.claims {
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}

	claims, err := credential.Verify(token, signer.PublicKey(), credConfig.Audience)
	if err != nil {
		return err
	}

	out := tokenClaims{
		KeyID:     credConfig.KeyID,
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Audience:  claims.Audience,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
