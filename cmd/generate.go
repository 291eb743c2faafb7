package cmd

import (
	"github.com/mickaelvieira/mighty-qa-go-example/internal/generator"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
	"github.com/spf13/cobra"
)

// storageFlags selects where pending authorization flows are kept.
type storageFlags struct {
	kind         string
	db           string
	verifierFile string
}

func (f *storageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "store", oauth.StorageSQLite, "Storage of pending authorizations: sqlite, file or memory")
	cmd.Flags().StringVar(&f.db, "db", "", "SQLite database of the sqlite storage (default \"mighty-qa.db\")")
	cmd.Flags().StringVar(&f.verifierFile, "verifier-file", "", "Verifier file of the file storage (default \"code_verifier.txt\")")
}

func (f *storageFlags) path() string {
	if f.kind == oauth.StorageFile {
		return f.verifierFile
	}
	return f.db
}

func newGenerateCmd() *cobra.Command {
	var (
		storage     storageFlags
		redirectURI string
	)

	cmd := &cobra.Command{
		Use:   "generate-url",
		Short: "Print the URL a user opens to authorize the application",
		Long: `Generates a state and a PKCE verifier, keeps them in the selected storage
and prints the authorization URL. The server started with 'mighty-qa serve'
must use the same storage to redeem the code.

Requires MIGHTY_APPLICATION_API_KEY, MIGHTY_APPLICATION_ID,
MIGHTY_APPLICATION_PRIVATE_KEY and MIGHTY_BASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := generator.Run(cmd.OutOrStdout(), generator.Options{
				Storage:     storage.kind,
				Path:        storage.path(),
				RedirectURI: redirectURI,
			})
			return err
		},
	}

	storage.register(cmd)
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", oauth.DefaultRedirectURI, "Where the user is sent back after consent")

	return cmd
}
