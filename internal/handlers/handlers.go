package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/assistant"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/api"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/oauth"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
)

const (
	FlashError   = "error"
	FlashWarning = "warning"
	FlashSuccess = "success"

	Title = "Mighty Private Data QA Agent Example"
)

// Asker answers a question about some user data.
type Asker interface {
	Ask(ctx context.Context, question string, data map[string]any) (string, error)
}

var _ Asker = (*assistant.Assistant)(nil)

func New(s *sessions.CookieStore, st *session.Store, o oauth.Service, d api.BiscuitFetcher, a Asker) *Handlers {
	return &Handlers{
		Session:   s,
		Contexts:  st,
		OAuth:     o,
		Data:      d,
		Assistant: a,
	}
}

// Handlers drive the authorization flow of a browser session, from the
// callback of the authorization server to the questions about the data.
type Handlers struct {
	Session   *sessions.CookieStore
	Contexts  *session.Store
	OAuth     oauth.Service
	Data      api.BiscuitFetcher
	Assistant Asker
}

func (h *Handlers) Routes(router *mux.Router) {
	router.HandleFunc("/", h.Home()).Methods("GET")
	router.HandleFunc("/login", h.Login()).Methods("GET")
	router.HandleFunc("/ask", h.Ask()).Methods("POST")
	router.HandleFunc("/refresh", h.Refresh()).Methods("POST")
	router.HandleFunc("/reset", h.Reset()).Methods("GET", "POST")
}

// Home renders the session according to its state. A session holding a
// submitted token wins over an incoming code, which in turn wins over idling.
func (h *Handlers) Home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()
		params := oauth.ToCallbackParams(r.URL.Query())

		switch {
		case c.State == session.Complete:
			p := h.page(w, r, sess, c)
			render(w, completeTemplate, p)

		case c.State == session.Ready:
			if err := c.Submit(); err != nil {
				slog.Error("failed to submit", "session", c.ID, "error", err)
			}
			p := h.page(w, r, sess, c)
			p.Refresh = true
			h.Contexts.Save(c)
			render(w, readyTemplate, p)

		case params.IsCallback():
			slog.Info("authorization callback", "session", c.ID, "params", params)

			if err := h.exchange(r.Context(), &c, params); err != nil {
				slog.Error("token exchange failed", "session", c.ID, "error", err)
				sess.AddFlash(fmt.Sprintf("Error during token exchange: %v", err), FlashError)
			}

			h.Contexts.Save(c)
			save(w, r, sess)
			http.Redirect(w, r, "/", http.StatusSeeOther)

		default:
			render(w, idleTemplate, h.page(w, r, sess, c))
		}
	}
}

// exchange redeems the code and loads the user data. The session is back
// to idle when any of both fails.
func (h *Handlers) exchange(ctx context.Context, c *session.Context, p oauth.CallbackParams) error {
	if err := c.BeginExchange(); err != nil {
		return err
	}

	tkn, _, err := h.OAuth.RequestBiscuitToken(ctx, p)
	if err != nil {
		return errors.Join(err, c.Fail())
	}

	slog.Debug("biscuit token received", "session", c.ID, "token", tkn)

	data, err := h.Data.GetUserDataBiscuit(ctx, tkn.Token)
	if err != nil {
		return errors.Join(err, c.Fail())
	}

	return c.Authorize(tkn.Token, data)
}

// Login starts a flow from the browser, which only works when the
// callback handler shares the flow storage with this process.
func (h *Handlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, flow, err := h.OAuth.StartAuthorization()
		if err != nil {
			addFlash(w, r, h.Session, FlashError, err.Error())
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		slog.Info("authorization started", "state", flow.State)

		http.Redirect(w, r, u, http.StatusSeeOther)
	}
}

func (h *Handlers) Ask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		if c.State != session.Complete {
			sess.AddFlash("Please authorize the application to access your data.", FlashWarning)
			save(w, r, sess)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		ask(r, h.Assistant, sess, &c)

		h.Contexts.Save(c)
		save(w, r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Refresh fetches the user data again with the token of the session. A token
// requested for a single use is spent by the first fetch, a new authorization
// is needed instead.
func (h *Handlers) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		switch {
		case c.State != session.Complete:
		case h.OAuth.UsageOnce():
			sess.AddFlash("The token was issued for a single use, start over to fetch your data again.", FlashWarning)
		default:
			data, err := h.Data.GetUserDataBiscuit(r.Context(), c.Token)
			if err != nil {
				sess.AddFlash(fmt.Sprintf("Error fetching user data: %v", err), FlashError)
			} else {
				c.UserData = data
				sess.AddFlash("User data refreshed successfully!", FlashSuccess)
				h.Contexts.Save(c)
			}
		}

		save(w, r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Reset forgets the token and the data, a new code is needed to go on.
func (h *Handlers) Reset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		c.Reset()
		h.Contexts.Delete(c.ID)
		delete(sess.Values, session.IDKey)

		save(w, r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, sess *sessions.Session, c session.Context) page {
	p := page{
		Title:       Title,
		Refreshable: !h.OAuth.UsageOnce(),
		Flashes:     flashes(sess),
		UserData:    prettyJSON(c.UserData),
		Token:       c.Token,
		Question:    c.Question,
		Answer:      c.Answer,
	}
	save(w, r, sess)
	return p
}
