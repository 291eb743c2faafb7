package cmd

import (
	"github.com/mickaelvieira/mighty-qa-go-example/internal/assistant"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/handlers"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/api"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
	"github.com/spf13/cobra"
)

func newDirectCmd() *cobra.Command {
	var server serverFlags

	cmd := &cobra.Command{
		Use:   "direct",
		Short: "Start the web server reading the data with static credentials",
		Long: `Starts a server fetching the user's data with the data API credentials,
without any authorization flow, and answering questions about it.

Requires MIGHTY_DATA_API_KEY, MIGHTY_DATA_PUBLIC_KEY and MIGHTY_DATA_PRIVATE_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDirect()
			if err != nil {
				return err
			}

			h := handlers.NewDirect(
				session.NewCookieStore(sessionSecret(cfg.SessionSecret)),
				session.NewStore(SessionMaxAge),
				api.NewUserDataClient(cfg.BaseURL, cfg.APIKey, cfg.PublicKey, cfg.PrivateKey),
				assistant.New(assistant.NewChatModel(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.APIKey)),
			)

			banner(cmd.OutOrStdout(), "mighty qa")

			return listen(cmd, server.addr(), newRouter(h.Routes))
		},
	}

	server.register(cmd)

	return cmd
}
