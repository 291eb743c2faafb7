package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	// DefaultRedirectURI is where the token service sends the user back after consent.
	DefaultRedirectURI = "http://localhost:8501"

	AuthorizePath = "/oauth/authorize"
	TokenPath     = "/api/v1/oauth/token"

	APIKeyHeader = "X-API-KEY"

	// DefaultExpiration is the lifetime in seconds requested for a biscuit token.
	DefaultExpiration = 3600

	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2.1
	OAuthAccessDeniedCode   = "access_denied"
	OAuthInvalidGrantCode   = "invalid_grant"
	OAuthInvalidRequestCode = "invalid_request"
	OAuthServerErrorCode    = "server_error"
)

const (
	MsgFailedParsing       = "failed to parse response"
	MsgFailedURL           = "failed to build authorization URL"
	MsgFailedTokensRequest = "OAuth tokens request failed"
)

var (
	ErrUnknownState = errors.New("no pending authorization for this state")
	ErrFlowExpired  = errors.New("authorization request expired, generate a new URL")
	ErrMissingCode  = errors.New("authorization code is missing")
)

// AuthorizationParam carries what the authorization endpoint needs to start a flow.
type AuthorizationParam struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenParam binds the token request to the client and the original verifier.
type TokenParam struct {
	ClientID     string
	CodeVerifier string
	RedirectURI  string
}

func (n TokenParam) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", n.ClientID),
		slog.String("code_verifier", strings.Repeat("x", len(n.CodeVerifier))),
		slog.String("redirect_uri", n.RedirectURI))
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	Expiration   int    `json:"expiration"`
	UsageOnce    bool   `json:"usage_once"`
}

// BiscuitToken is the signed credential returned by the token exchange.
type BiscuitToken struct {
	Token string `json:"biscuit_token"`
}

func (n BiscuitToken) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("biscuit_token", strings.Repeat("x", len(n.Token))))
}

// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2.1
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	URI         string `json:"error_uri"`
}

func (e ErrorResponse) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("code: %s, description: %s, uri: %s", e.Code, e.Description, e.URI)
	}
	return fmt.Sprintf("code: %s, description: %s", e.Code, e.Description)
}

type CallbackParams struct {
	// the authorization code to use to request the biscuit token
	Code string `json:"code"`
	// the state sent alongside the authorization request
	State string `json:"state"`
	// set by the authorization server when the user refused the consent
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (n CallbackParams) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("code", strings.Repeat("x", len(n.Code))),
		slog.String("state", n.State),
		slog.String("error", n.Error))
}

// IsCallback reports whether the query carries an authorization response.
func (n CallbackParams) IsCallback() bool {
	return n.Code != "" || n.Error != ""
}

func ToCallbackParams(v url.Values) CallbackParams {
	return CallbackParams{
		Code:             v.Get("code"),
		State:            v.Get("state"),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
	}
}
