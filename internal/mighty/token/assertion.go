package token

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

const AssertionLifetime = 5 * time.Minute

// ParsePrivateKey decodes an application private key given as a JWK document.
func ParsePrivateKey(pkey []byte) (jose.JSONWebKey, error) {
	var priv jose.JSONWebKey
	if err := json.Unmarshal(pkey, &priv); err != nil {
		return priv, fmt.Errorf("failed to parse private key: %w", err)
	}
	if priv.IsPublic() {
		return priv, fmt.Errorf("failed to parse private key: a public key was provided")
	}
	return priv, nil
}

func AssertionSigner(pkey jose.JSONWebKey) (jose.Signer, error) {
	key := jose.SigningKey{
		Algorithm: jose.ES256,
		Key:       pkey.Key,
	}

	opts := &jose.SignerOptions{}
	opts.WithType("JWT")
	if pkey.KeyID != "" {
		opts.WithHeader("kid", pkey.KeyID)
	}

	return jose.NewSigner(key, opts)
}

// SignAssertion builds a short lived JWT proving that the request was issued
// by the holder of the application private key.
func SignAssertion(pkey jose.JSONWebKey, clientID, audience string, now time.Time) (string, error) {
	type claims struct {
		Iss string `json:"iss"`
		Sub string `json:"sub"`
		Aud string `json:"aud"`
		Exp int64  `json:"exp"`
		Iat int64  `json:"iat"`
		Jti string `json:"jti"`
	}

	signer, err := AssertionSigner(pkey)
	if err != nil {
		return "", fmt.Errorf("failed to create assertion signer: %v", err)
	}

	d := claims{
		Iss: clientID,
		Sub: clientID,
		Aud: audience,
		Exp: now.Add(AssertionLifetime).Unix(),
		Iat: now.Unix(),
		Jti: uuid.NewString(),
	}

	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %v", err)
	}

	sig, err := signer.Sign(b)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return sig.CompactSerialize()
}
