package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/token"
)

const (
	ApplicationUserDataPath = "/api/v1/app/user-data"
	UserDataPath            = "/api/v1/user/data"

	AssertionHeader = "X-Client-Assertion"
	PublicKeyHeader = "X-API-PUBLIC-KEY"
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"

	MsgFailedUserData = "user data request failed"
)

// UserData is the private data of a user, kept as an opaque JSON document.
type UserData = map[string]any

type Fetcher interface {
	GetData(ctx context.Context) (UserData, error)
}

type BiscuitFetcher interface {
	GetUserDataBiscuit(ctx context.Context, biscuit string) (UserData, error)
}

type Option func(c *client)

func WithClient(h *http.Client) Option {
	return func(c *client) {
		c.http = h
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *client) {
		c.now = now
	}
}

type client struct {
	baseURL string
	apiKey  string
	now     func() time.Time
	http    *http.Client
}

func newClient(baseURL, apiKey string, opts []Option) client {
	c := client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
		http:    &http.Client{Timeout: time.Second * 60},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ApplicationClient reads user data on behalf of an application that holds a biscuit token.
type ApplicationClient struct {
	client
	clientID string
	pkey     jose.JSONWebKey
}

var _ BiscuitFetcher = (*ApplicationClient)(nil)

func NewApplicationClient(baseURL, clientID, apiKey, privateKey string, opts ...Option) (*ApplicationClient, error) {
	pkey, err := token.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return nil, err
	}

	return &ApplicationClient{
		client:   newClient(baseURL, apiKey, opts),
		clientID: clientID,
		pkey:     pkey,
	}, nil
}

func (c *ApplicationClient) GetUserDataBiscuit(ctx context.Context, biscuit string) (UserData, error) {
	uri := c.baseURL + ApplicationUserDataPath

	assert, err := token.SignAssertion(c.pkey, c.clientID, c.baseURL, c.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %v", MsgFailedUserData, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Biscuit %s", biscuit))
	req.Header.Set(oauth.APIKeyHeader, c.apiKey)
	req.Header.Set(AssertionHeader, assert)

	return c.handle(req)
}

// UserDataClient reads the data of the user owning the static API credentials.
type UserDataClient struct {
	client
	publicKey  string
	privateKey string
}

var _ Fetcher = (*UserDataClient)(nil)

func NewUserDataClient(baseURL, apiKey, publicKey, privateKey string, opts ...Option) *UserDataClient {
	return &UserDataClient{
		client:     newClient(baseURL, apiKey, opts),
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

func (c *UserDataClient) GetData(ctx context.Context) (UserData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+UserDataPath, nil)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)

	req.Header.Set(oauth.APIKeyHeader, c.apiKey)
	req.Header.Set(PublicKeyHeader, c.publicKey)
	req.Header.Set(TimestampHeader, ts)
	req.Header.Set(SignatureHeader, Sign(c.privateKey, req.Method, req.URL.Path, ts))

	return c.handle(req)
}

// Sign computes the request signature expected along the static credentials.
func Sign(privateKey, method, path, ts string) string {
	m := hmac.New(sha256.New, []byte(privateKey))
	m.Write([]byte(method + "\n" + path + "\n" + ts))
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

func (c *client) handle(req *http.Request) (UserData, error) {
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedUserData, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedUserData, err)
	}

	if res.StatusCode != http.StatusOK {
		var oauthError oauth.ErrorResponse
		if err := json.Unmarshal(b, &oauthError); err != nil || oauthError.Code == "" {
			return nil, fmt.Errorf("%s: status %d: %s", MsgFailedUserData, res.StatusCode, strings.TrimSpace(string(b)))
		}
		return nil, fmt.Errorf("%s: status %d, error %w", MsgFailedUserData, res.StatusCode, oauthError)
	}

	var data UserData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%s: %v", oauth.MsgFailedParsing, err)
	}

	return data, nil
}
