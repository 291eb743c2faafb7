package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AppAPIKeyVar     = "MIGHTY_APPLICATION_API_KEY"
	AppIDVar         = "MIGHTY_APPLICATION_ID"
	AppPrivateKeyVar = "MIGHTY_APPLICATION_PRIVATE_KEY"
	BaseURLVar       = "MIGHTY_BASE_URL"

	OAuthAppAPIKeyVar     = "MIGHTY_OAUTH_APPLICATION_API_KEY"
	OAuthAppIDVar         = "MIGHTY_OAUTH_APPLICATION_ID"
	OAuthAppPrivateKeyVar = "MIGHTY_OAUTH_APPLICATION_PRIVATE_KEY"

	DataAPIKeyVar     = "MIGHTY_DATA_API_KEY"
	DataPublicKeyVar  = "MIGHTY_DATA_PUBLIC_KEY"
	DataPrivateKeyVar = "MIGHTY_DATA_PRIVATE_KEY"

	AIBaseURLVar = "MIGHTY_AI_BASE_URL"
	AIModelVar   = "MIGHTY_AI_MODEL"

	SessionSecretVar = "SESSION_SECRET"

	DefaultBaseURL = "https://service-platform.prod.mightynetwork.ai"
)

// MissingError lists the required variables that are not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Vars, ", "))
}

// LoadDotEnv reads a .env file into the environment, a missing file is not an error.
// Variables already set take precedence.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Lookup returns the first non blank value among the given variables.
func Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func GetEnv(key, defaultValue string) string {
	if v, ok := Lookup(key); ok {
		return v
	}
	return defaultValue
}

type required struct {
	missing []string
}

func (r *required) get(keys ...string) string {
	v, ok := Lookup(keys...)
	if !ok {
		r.missing = append(r.missing, keys[0])
	}
	return v
}

func (r *required) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	return &MissingError{Vars: r.missing}
}

// Application holds the credentials of an OAuth application.
type Application struct {
	APIKey     string
	ID         string
	PrivateKey string
	BaseURL    string
}

// Generator is what the authorization URL generator needs.
type Generator struct {
	Application
}

func LoadGenerator() (Generator, error) {
	var r required
	c := Generator{
		Application: Application{
			APIKey:     r.get(AppAPIKeyVar),
			ID:         r.get(AppIDVar),
			PrivateKey: r.get(AppPrivateKeyVar),
			BaseURL:    r.get(BaseURLVar),
		},
	}
	return c, r.err()
}

// AI configures the chat model answering questions.
type AI struct {
	BaseURL string
	Model   string
	APIKey  string
}

func loadAI(baseURL, apiKey string) AI {
	return AI{
		BaseURL: GetEnv(AIBaseURLVar, strings.TrimRight(baseURL, "/")+"/api/v1/app/ai"),
		Model:   GetEnv(AIModelVar, ""),
		APIKey:  apiKey,
	}
}

// Callback is what the callback handler needs. The OAuth specific variables
// take precedence over the ones shared with the generator.
type Callback struct {
	Application
	AI            AI
	SessionSecret string
}

func LoadCallback() (Callback, error) {
	var r required
	c := Callback{
		Application: Application{
			APIKey:     r.get(OAuthAppAPIKeyVar, AppAPIKeyVar),
			ID:         r.get(OAuthAppIDVar, AppIDVar),
			PrivateKey: r.get(OAuthAppPrivateKeyVar, AppPrivateKeyVar),
			BaseURL:    r.get(BaseURLVar),
		},
		SessionSecret: GetEnv(SessionSecretVar, ""),
	}
	c.AI = loadAI(c.BaseURL, c.APIKey)
	return c, r.err()
}

// Direct is what the direct fetch variant needs.
type Direct struct {
	APIKey        string
	PublicKey     string
	PrivateKey    string
	BaseURL       string
	AI            AI
	SessionSecret string
}

func LoadDirect() (Direct, error) {
	var r required
	c := Direct{
		APIKey:        r.get(DataAPIKeyVar),
		PublicKey:     r.get(DataPublicKeyVar),
		PrivateKey:    r.get(DataPrivateKeyVar),
		BaseURL:       GetEnv(BaseURLVar, DefaultBaseURL),
		SessionSecret: GetEnv(SessionSecretVar, ""),
	}
	c.AI = loadAI(c.BaseURL, c.APIKey)
	return c, r.err()
}
