package session

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	CookieName = "mighty-qa-session"

	// IDKey is the cookie value pointing at the server side context
	IDKey = "sid"
)

func NewCookieStore(secret []byte) *sessions.CookieStore {
	s := sessions.NewCookieStore(secret)
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}
