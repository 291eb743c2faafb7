package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGenerateCodeVerifier(t *testing.T) {
	p := GenerateCodeVerifier()

	assert.Equal(t, CodeChallengeMethodS256, p.Method)
	assert.GreaterOrEqual(t, len(p.Verifier), 43)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(p.Verifier), p.Challenge)
	assert.NotEqual(t, p.Verifier, GenerateCodeVerifier().Verifier)
}

func TestGetAuthorizationURL(t *testing.T) {
	t.Run("builds the URL", func(t *testing.T) {
		u, err := GetAuthorizationURL("https://x", AuthorizationParam{
			ClientID:            "id1",
			RedirectURI:         DefaultRedirectURI,
			State:               "st",
			CodeChallenge:       "ch",
			CodeChallengeMethod: CodeChallengeMethodS256,
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(u, "https://x"))
		assert.Contains(t, u, "client_id=id1")

		parsed, err := url.Parse(u)
		require.NoError(t, err)
		assert.Equal(t, AuthorizePath, parsed.Path)

		q := parsed.Query()
		assert.Equal(t, DefaultRedirectURI, q.Get("redirect_uri"))
		assert.Equal(t, "st", q.Get("state"))
		assert.Equal(t, "ch", q.Get("code_challenge"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "code", q.Get("response_type"))
	})

	t.Run("relative base URL", func(t *testing.T) {
		_, err := GetAuthorizationURL("x", AuthorizationParam{CodeChallengeMethod: CodeChallengeMethodS256})
		require.Error(t, err)
	})

	t.Run("plain method", func(t *testing.T) {
		_, err := GetAuthorizationURL("https://x", AuthorizationParam{CodeChallengeMethod: "plain"})
		require.Error(t, err)
	})
}

func TestStartAuthorization(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultVerifierFile)
	c := NewClient("https://x/", "id1", "k1", WithStorage(NewFileStorage(path)))

	u, flow, err := c.StartAuthorization()
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, flow.PKCE.Verifier, string(b))

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(string(b)), parsed.Query().Get("code_challenge"))
	assert.Equal(t, flow.State, parsed.Query().Get("state"))
	assert.True(t, strings.HasPrefix(u, "https://x/oauth/authorize?"))
}

type tokenServer struct {
	*httptest.Server
	calls    int
	received tokenRequest
	apiKey   string
}

func newTokenServer(t *testing.T, status int, body string) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls++
		assert.Equal(t, TokenPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		ts.apiKey = r.Header.Get(APIKeyHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ts.received))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts
}

func TestRequestBiscuitToken(t *testing.T) {
	ctx := context.Background()

	t.Run("verifier round trip through the file", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
		path := filepath.Join(t.TempDir(), DefaultVerifierFile)
		c := NewClient(srv.URL, "id1", "k1", WithStorage(NewFileStorage(path)))

		_, flow, err := c.StartAuthorization()
		require.NoError(t, err)

		written, err := os.ReadFile(path)
		require.NoError(t, err)

		tkn, _, err := c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, "b1", tkn.Token)
		assert.Equal(t, string(written), srv.received.CodeVerifier)
		assert.Equal(t, flow.PKCE.Verifier, srv.received.CodeVerifier)
		assert.Equal(t, "abc123", srv.received.Code)
		assert.Equal(t, "id1", srv.received.ClientID)
		assert.Equal(t, DefaultRedirectURI, srv.received.RedirectURI)
		assert.Equal(t, DefaultExpiration, srv.received.Expiration)
		assert.True(t, srv.received.UsageOnce)
		assert.Equal(t, "k1", srv.apiKey)

		_, err = os.Stat(path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("missing verifier file", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
		path := filepath.Join(t.TempDir(), DefaultVerifierFile)
		c := NewClient(srv.URL, "id1", "k1", WithStorage(NewFileStorage(path)))

		tkn, _, err := c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownState)
		assert.Nil(t, tkn)
		assert.Zero(t, srv.calls)
	})

	t.Run("unknown state", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
		c := NewClient(srv.URL, "id1", "k1")

		_, flow, err := c.StartAuthorization()
		require.NoError(t, err)

		_, _, err = c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123", State: flow.State + "x"})
		assert.ErrorIs(t, err, ErrUnknownState)
		assert.Zero(t, srv.calls)
	})

	t.Run("flow is single use", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
		c := NewClient(srv.URL, "id1", "k1")

		_, flow, err := c.StartAuthorization()
		require.NoError(t, err)

		_, _, err = c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123", State: flow.State})
		require.NoError(t, err)

		_, _, err = c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123", State: flow.State})
		assert.ErrorIs(t, err, ErrUnknownState)
		assert.Equal(t, 1, srv.calls)
	})

	t.Run("expired flow", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
		now := time.Now()
		c := NewClient(srv.URL, "id1", "k1", WithClock(func() time.Time { return now }))

		_, flow, err := c.StartAuthorization()
		require.NoError(t, err)

		now = now.Add(DefaultFlowTTL + time.Second)

		_, _, err = c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123", State: flow.State})
		assert.ErrorIs(t, err, ErrFlowExpired)
		assert.Zero(t, srv.calls)
	})

	t.Run("denied consent", func(t *testing.T) {
		c := NewClient("https://x", "id1", "k1")

		_, _, err := c.RequestBiscuitToken(ctx, CallbackParams{Error: OAuthAccessDeniedCode, ErrorDescription: "nope"})

		var oauthErr ErrorResponse
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, OAuthAccessDeniedCode, oauthErr.Code)
	})

	t.Run("missing code", func(t *testing.T) {
		c := NewClient("https://x", "id1", "k1")

		_, _, err := c.RequestBiscuitToken(ctx, CallbackParams{State: "s"})
		assert.ErrorIs(t, err, ErrMissingCode)
	})

	t.Run("token service error", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code verifier mismatch"}`)
		c := NewClient(srv.URL, "id1", "k1")

		_, flow, err := c.StartAuthorization()
		require.NoError(t, err)

		_, _, err = c.RequestBiscuitToken(ctx, CallbackParams{Code: "abc123", State: flow.State})

		var oauthErr ErrorResponse
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, OAuthInvalidGrantCode, oauthErr.Code)
		assert.Contains(t, err.Error(), MsgFailedTokensRequest)
		assert.Contains(t, err.Error(), "status 400")
	})

	t.Run("non oauth error body", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusBadGateway, `upstream down`)
		c := NewClient(srv.URL, "id1", "k1")

		_, err := c.ExchangeCodeForBiscuitToken(ctx, "abc123", DefaultExpiration, true, TokenParam{ClientID: "id1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502: upstream down")
	})

	t.Run("empty token", func(t *testing.T) {
		srv := newTokenServer(t, http.StatusOK, `{}`)
		c := NewClient(srv.URL, "id1", "k1")

		_, err := c.ExchangeCodeForBiscuitToken(ctx, "abc123", DefaultExpiration, true, TokenParam{ClientID: "id1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), MsgFailedParsing)
	})
}

func TestRequestBiscuitToken_UsageOnce(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK, `{"biscuit_token":"b1"}`)
	c := NewClient(srv.URL, "id1", "k1", WithUsageOnce(false))
	assert.False(t, c.UsageOnce())
	assert.True(t, NewClient(srv.URL, "id1", "k1").UsageOnce())

	_, flow, err := c.StartAuthorization()
	require.NoError(t, err)

	_, _, err = c.RequestBiscuitToken(context.Background(), CallbackParams{Code: "abc123", State: flow.State})
	require.NoError(t, err)
	assert.False(t, srv.received.UsageOnce)
}

func TestRequestBiscuitToken_ConcurrentCallbacks(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"biscuit_token":"b1"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "id1", "k1")

	_, flow, err := c.StartAuthorization()
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.RequestBiscuitToken(context.Background(), CallbackParams{Code: "abc123", State: flow.State})
			if err == nil {
				succeeded.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrUnknownState)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, succeeded.Load())
}

func TestToCallbackParams(t *testing.T) {
	v, err := url.ParseQuery("code=abc123&state=s1")
	require.NoError(t, err)

	p := ToCallbackParams(v)
	assert.Equal(t, CallbackParams{Code: "abc123", State: "s1"}, p)
	assert.True(t, p.IsCallback())
	assert.False(t, ToCallbackParams(url.Values{}).IsCallback())
}
