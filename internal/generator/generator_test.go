package generator

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setEnv(t *testing.T, apiKey, appID, privKey, baseURL string) {
	t.Helper()
	t.Setenv(config.AppAPIKeyVar, apiKey)
	t.Setenv(config.AppIDVar, appID)
	t.Setenv(config.AppPrivateKeyVar, privKey)
	t.Setenv(config.BaseURLVar, baseURL)
}

func TestRun(t *testing.T) {
	setEnv(t, "k1", "id1", "p1", "https://x")

	path := filepath.Join(t.TempDir(), oauth.DefaultVerifierFile)
	var out bytes.Buffer

	u, err := Run(&out, Options{Storage: oauth.StorageFile, Path: path})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u, "https://x"))
	assert.Contains(t, u, "client_id=id1")
	assert.Equal(t, "Authorize the application by visiting this URL:\n\n"+u+"\n\n", out.String())

	verifier, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, oauth.DefaultRedirectURI, parsed.Query().Get("redirect_uri"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(string(verifier)), parsed.Query().Get("code_challenge"))
}

func TestRun_SQLite(t *testing.T) {
	setEnv(t, "k1", "id1", "p1", "https://x")

	path := filepath.Join(t.TempDir(), "flows.db")
	var out bytes.Buffer

	u, err := Run(&out, Options{Storage: oauth.StorageSQLite, Path: path})
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)

	s, err := oauth.OpenStorage(oauth.StorageSQLite, path)
	require.NoError(t, err)

	flow, err := s.Get(parsed.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, parsed.Query().Get("code_challenge"), flow.PKCE.Challenge)
}

func TestRun_MissingConfig(t *testing.T) {
	tests := []struct {
		name    string
		missing string
	}{
		{"api key", config.AppAPIKeyVar},
		{"app id", config.AppIDVar},
		{"private key", config.AppPrivateKeyVar},
		{"base url", config.BaseURLVar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "k1", "id1", "p1", "https://x")
			t.Setenv(tt.missing, "")

			path := filepath.Join(t.TempDir(), oauth.DefaultVerifierFile)
			var out bytes.Buffer

			_, err := Run(&out, Options{Storage: oauth.StorageFile, Path: path})

			var missing *config.MissingError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, []string{tt.missing}, missing.Vars)
			assert.Empty(t, out.String())

			_, err = os.Stat(path)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestRun_MemoryStorage(t *testing.T) {
	setEnv(t, "k1", "id1", "p1", "https://x")

	var out bytes.Buffer
	_, err := Run(&out, Options{Storage: oauth.StorageMemory})
	require.ErrorIs(t, err, ErrMemoryStorage)
	assert.Empty(t, out.String())
}
