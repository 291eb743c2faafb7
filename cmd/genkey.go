package cmd

import (
	"fmt"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/potproject/atproto-oauth2-go-example/key"
	"github.com/spf13/cobra"
)

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate an application private key",
		Long:  `Prints a new ES256 private key as a JWK, ready to be pasted into the .env file.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s='%s'\n", config.AppPrivateKeyVar, key.GenerateSecretJWK())
		},
	}
}
