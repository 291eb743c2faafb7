package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
)

// cookie returns the session of the request, a broken cookie gives a fresh session.
func cookie(s *sessions.CookieStore, r *http.Request) *sessions.Session {
	sess, err := s.Get(r, session.CookieName)
	if err != nil {
		slog.Warn("discarding invalid session cookie", "error", err)
	}
	return sess
}

// acquire returns the context the cookie points at and binds the cookie to it.
// The context stays locked until release is called, so concurrent requests of
// a session never overwrite each other.
func acquire(st *session.Store, sess *sessions.Session) (c session.Context, release func()) {
	id, _ := sess.Values[session.IDKey].(string)
	release = st.Lock(id)
	c = st.Load(id)
	sess.Values[session.IDKey] = c.ID
	return c, release
}

func save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Save(r, w); err != nil {
		slog.Error("failed to save session", "error", err)
	}
}

func addFlash(w http.ResponseWriter, r *http.Request, s *sessions.CookieStore, kind, m string) {
	sess := cookie(s, r)
	sess.AddFlash(m, kind)
	save(w, r, sess)
}

func flashes(sess *sessions.Session) []flash {
	var out []flash
	for _, kind := range []string{FlashError, FlashWarning, FlashSuccess} {
		for _, m := range sess.Flashes(kind) {
			if s, ok := m.(string); ok {
				out = append(out, flash{Kind: kind, Message: s})
			}
		}
	}
	return out
}
