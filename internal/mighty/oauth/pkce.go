package oauth

import "golang.org/x/oauth2"

// https://datatracker.ietf.org/doc/html/rfc7636#section-4.2
const CodeChallengeMethodS256 = "S256"

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GenerateCodeVerifier returns a fresh verifier along with its S256 challenge.
func GenerateCodeVerifier() PKCE {
	v := oauth2.GenerateVerifier()

	return PKCE{
		Verifier:  v,
		Challenge: oauth2.S256ChallengeFromVerifier(v),
		Method:    CodeChallengeMethodS256,
	}
}
