package cmd

import (
	"log/slog"
	"time"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/assistant"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/handlers"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/api"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
	"github.com/spf13/cobra"
)

// SessionMaxAge is how long an inactive session keeps its token and data.
const SessionMaxAge = 24 * time.Hour

func newServeCmd() *cobra.Command {
	var (
		server   serverFlags
		storage  storageFlags
		ttl      time.Duration
		reusable bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server the user is redirected to after authorizing",
		Long: `Starts the callback server. When the user comes back with an authorization
code, the code is exchanged for a biscuit token which is used to fetch the
user's data. Questions about the data are then answered by the model.

Requires MIGHTY_OAUTH_APPLICATION_API_KEY, MIGHTY_OAUTH_APPLICATION_ID,
MIGHTY_OAUTH_APPLICATION_PRIVATE_KEY (or their MIGHTY_APPLICATION_*
counterparts) and MIGHTY_BASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCallback()
			if err != nil {
				return err
			}

			st, err := oauth.OpenStorage(storage.kind, storage.path())
			if err != nil {
				return err
			}

			if s, ok := st.(*oauth.SQLiteStorage); ok {
				n, err := s.Purge(time.Now().Add(-ttl))
				if err != nil {
					slog.Warn("failed to purge expired flows", "error", err)
				} else if n > 0 {
					slog.Info("expired flows purged", "count", n)
				}
			}

			data, err := api.NewApplicationClient(cfg.BaseURL, cfg.ID, cfg.APIKey, cfg.PrivateKey)
			if err != nil {
				return err
			}

			o := oauth.NewClient(cfg.BaseURL, cfg.ID, cfg.APIKey,
				oauth.WithStorage(st),
				oauth.WithFlowTTL(ttl),
				oauth.WithUsageOnce(!reusable),
			)

			model := assistant.NewChatModel(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.APIKey)
			slog.Info("assistant configured", "model", model.Model())

			h := handlers.New(
				session.NewCookieStore(sessionSecret(cfg.SessionSecret)),
				session.NewStore(SessionMaxAge),
				o,
				data,
				assistant.New(model),
			)

			banner(cmd.OutOrStdout(), "mighty qa")

			return listen(cmd, server.addr(), newRouter(h.Routes))
		},
	}

	server.register(cmd)
	storage.register(cmd)
	cmd.Flags().DurationVar(&ttl, "flow-ttl", oauth.DefaultFlowTTL, "How long a generated authorization URL can be redeemed")
	cmd.Flags().BoolVar(&reusable, "reusable-token", false, "Request biscuit tokens that can fetch the data more than once")

	return cmd
}
