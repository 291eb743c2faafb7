// Package generator prints the URL a user opens to authorize the application.
package generator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
)

const Message = "Authorize the application by visiting this URL:\n\n%s\n\n"

var ErrMemoryStorage = errors.New("the memory storage cannot hand the verifier over to the callback handler")

type Options struct {
	// Storage is one of the oauth.Storage* kinds
	Storage string
	// Path is the verifier file or the database, depending on Storage
	Path        string
	RedirectURI string
}

// Run checks the configuration, then records a new authorization flow and
// prints its URL. Nothing is written when the configuration is incomplete.
func Run(out io.Writer, o Options) (string, error) {
	cfg, err := config.LoadGenerator()
	if err != nil {
		return "", err
	}

	if o.Storage == oauth.StorageMemory {
		return "", ErrMemoryStorage
	}

	storage, err := oauth.OpenStorage(o.Storage, o.Path)
	if err != nil {
		return "", err
	}

	opts := []oauth.Option{oauth.WithStorage(storage)}
	if o.RedirectURI != "" {
		opts = append(opts, oauth.WithRedirectURI(o.RedirectURI))
	}

	c := oauth.NewClient(cfg.BaseURL, cfg.ID, cfg.APIKey, opts...)

	u, flow, err := c.StartAuthorization()
	if err != nil {
		return "", err
	}

	slog.Debug("authorization flow created", "state", flow.State, "storage", o.Storage)

	if _, err := fmt.Fprintf(out, Message, u); err != nil {
		return u, err
	}

	return u, nil
}
