package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/token"
	"golang.org/x/oauth2"
)

var _ Service = (*Client)(nil)

type Service interface {
	ClientID() string
	RedirectURI() string
	UsageOnce() bool
	StartAuthorization() (string, *FlowData, error)
	RequestBiscuitToken(ctx context.Context, params CallbackParams) (*BiscuitToken, *FlowData, error)
}

type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	redirectURI string
	ttl         time.Duration
	usageOnce   bool
	now         func() time.Time
	http        *http.Client
	storage     Storage
}

type Option func(c *Client)

func WithStorage(storage Storage) Option {
	return func(c *Client) {
		c.storage = storage
	}
}

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithRedirectURI(uri string) Option {
	return func(c *Client) {
		c.redirectURI = uri
	}
}

func WithFlowTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithUsageOnce sets whether the biscuit token can be presented only once.
func WithUsageOnce(once bool) Option {
	return func(c *Client) {
		c.usageOnce = once
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(baseURL, clientID, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		apiKey:      apiKey,
		redirectURI: DefaultRedirectURI,
		ttl:         DefaultFlowTTL,
		usageOnce:   true,
		now:         time.Now,
		storage:     NewInMemoryStorage(),
		http:        &http.Client{Timeout: time.Second * 60},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) RedirectURI() string {
	return c.redirectURI
}

// UsageOnce reports whether the tokens requested by the client are spent by their first use.
func (c *Client) UsageOnce() bool {
	return c.usageOnce
}

// GetAuthorizationURL resolves an authorization request against the service base URL.
func GetAuthorizationURL(baseURL string, p AuthorizationParam) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", MsgFailedURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s: base URL %q is not absolute", MsgFailedURL, baseURL)
	}
	if p.CodeChallengeMethod != CodeChallengeMethodS256 {
		return "", fmt.Errorf("%s: unsupported code challenge method %q", MsgFailedURL, p.CodeChallengeMethod)
	}

	conf := oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: p.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL: strings.TrimRight(baseURL, "/") + AuthorizePath,
		},
	}

	return conf.AuthCodeURL(p.State,
		oauth2.SetAuthURLParam("code_challenge", p.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", p.CodeChallengeMethod),
	), nil
}

// StartAuthorization creates a new flow, keeps it in the storage and returns
// the URL the user has to visit to grant access.
func (c *Client) StartAuthorization() (string, *FlowData, error) {
	state, err := token.GenState()
	if err != nil {
		return "", nil, err
	}

	flow := newFlowData(state, c.redirectURI, c.now())

	if err := c.storage.Set(flow); err != nil {
		return "", flow, err
	}

	u, err := GetAuthorizationURL(c.baseURL, AuthorizationParam{
		ClientID:            c.clientID,
		RedirectURI:         flow.RedirectURI,
		State:               flow.State,
		CodeChallenge:       flow.PKCE.Challenge,
		CodeChallengeMethod: flow.PKCE.Method,
	})
	if err != nil {
		return "", flow, err
	}

	return u, flow, nil
}

// RequestBiscuitToken redeems the authorization code of a callback. The pending
// flow is taken out of the storage before the exchange, whatever its outcome,
// so a code is never posted twice for the same flow.
func (c *Client) RequestBiscuitToken(ctx context.Context, p CallbackParams) (*BiscuitToken, *FlowData, error) {
	if p.Error != "" {
		return nil, nil, ErrorResponse{Code: p.Error, Description: p.ErrorDescription}
	}
	if p.Code == "" {
		return nil, nil, ErrMissingCode
	}

	flow, err := c.storage.Take(p.State)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve state %s: %w", p.State, err)
	}

	if flow.State == "" {
		slog.Warn("the callback state cannot be verified with this storage", "state", p.State)
	}

	if flow.Expired(c.ttl, c.now()) {
		return nil, flow, ErrFlowExpired
	}

	redirectURI := flow.RedirectURI
	if redirectURI == "" {
		redirectURI = c.redirectURI
	}

	tkn, err := c.ExchangeCodeForBiscuitToken(ctx, p.Code, DefaultExpiration, c.usageOnce, TokenParam{
		ClientID:     c.clientID,
		CodeVerifier: flow.PKCE.Verifier,
		RedirectURI:  redirectURI,
	})
	if err != nil {
		return nil, flow, err
	}

	return tkn, flow, nil
}

// ExchangeCodeForBiscuitToken trades an authorization code for a biscuit token
// valid for expiration seconds, optionally restricted to a single use.
func (c *Client) ExchangeCodeForBiscuitToken(ctx context.Context, code string, expiration int, usageOnce bool, p TokenParam) (*BiscuitToken, error) {
	slog.Debug("exchanging authorization code", "params", p, "expiration", expiration, "usage_once", usageOnce)

	res, err := c.requestBiscuitToken(ctx, tokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     p.ClientID,
		CodeVerifier: p.CodeVerifier,
		RedirectURI:  p.RedirectURI,
		Expiration:   expiration,
		UsageOnce:    usageOnce,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgFailedTokensRequest, err)
	}

	return &res, nil
}

func (c *Client) requestBiscuitToken(ctx context.Context, t tokenRequest) (BiscuitToken, error) {
	var tkn BiscuitToken

	body, err := json.Marshal(t)
	if err != nil {
		return tkn, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+TokenPath,
		bytes.NewReader(body),
	)

	if err != nil {
		return tkn, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	r, err := c.http.Do(req)
	if err != nil {
		return tkn, err
	}
	defer r.Body.Close()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return tkn, err
	}

	if r.StatusCode == http.StatusOK || r.StatusCode == http.StatusCreated {
		if err := json.Unmarshal(b, &tkn); err != nil {
			return tkn, fmt.Errorf("%s: %v", MsgFailedParsing, err)
		}
		if tkn.Token == "" {
			return tkn, fmt.Errorf("%s: biscuit_token is missing", MsgFailedParsing)
		}
		return tkn, nil
	}

	var oauthError ErrorResponse
	if err := json.Unmarshal(b, &oauthError); err != nil || oauthError.Code == "" {
		return tkn, fmt.Errorf("status %d: %s", r.StatusCode, strings.TrimSpace(string(b)))
	}

	return tkn, fmt.Errorf("status %d, error %w", r.StatusCode, oauthError)
}
