package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/potproject/atproto-oauth2-go-example/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenState(t *testing.T) {
	a, err := GenState()
	require.NoError(t, err)
	b, err := GenState()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, StateLen)
}

func TestParsePrivateKey(t *testing.T) {
	t.Run("valid jwk", func(t *testing.T) {
		priv, err := ParsePrivateKey([]byte(key.GenerateSecretJWK()))
		require.NoError(t, err)
		assert.False(t, priv.IsPublic())
	})

	t.Run("public jwk", func(t *testing.T) {
		priv, err := ParsePrivateKey([]byte(key.GenerateSecretJWK()))
		require.NoError(t, err)

		b, err := priv.Public().MarshalJSON()
		require.NoError(t, err)

		_, err = ParsePrivateKey(b)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParsePrivateKey([]byte("p1"))
		require.Error(t, err)
	})
}

func TestSignAssertion(t *testing.T) {
	priv, err := ParsePrivateKey([]byte(key.GenerateSecretJWK()))
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	s, err := SignAssertion(priv, "app-1", "https://x", now)
	require.NoError(t, err)
	assert.Len(t, strings.Split(s, "."), 3)

	sig, err := jose.ParseSigned(s, []jose.SignatureAlgorithm{jose.ES256})
	require.NoError(t, err)

	pub := priv.Public()
	payload, err := sig.Verify(&pub)
	require.NoError(t, err)

	assert.Contains(t, string(payload), `"iss":"app-1"`)
	assert.Contains(t, string(payload), `"aud":"https://x"`)
	assert.Contains(t, string(payload), `"exp":1700000300`)
}
