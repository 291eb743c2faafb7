package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/assistant"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/api"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
)

const DirectTitle = "Private Data QA Agent"

func NewDirect(s *sessions.CookieStore, st *session.Store, d api.Fetcher, a Asker) *Direct {
	return &Direct{
		Session:   s,
		Contexts:  st,
		Data:      d,
		Assistant: a,
	}
}

// Direct serves the variant reading the data with static credentials, no
// authorization involved.
type Direct struct {
	Session   *sessions.CookieStore
	Contexts  *session.Store
	Data      api.Fetcher
	Assistant Asker
}

func (h *Direct) Routes(router *mux.Router) {
	router.HandleFunc("/", h.Home()).Methods("GET")
	router.HandleFunc("/fetch", h.Fetch()).Methods("POST")
	router.HandleFunc("/ask", h.Ask()).Methods("POST")
}

func (h *Direct) Home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		p := page{
			Title:    DirectTitle,
			Flashes:  flashes(sess),
			UserData: prettyJSON(c.UserData),
			Question: c.Question,
			Answer:   c.Answer,
		}
		save(w, r, sess)

		render(w, directTemplate, p)
	}
}

func (h *Direct) Fetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		data, err := h.Data.GetData(r.Context())
		switch {
		case err != nil:
			slog.Error("failed to fetch user data", "session", c.ID, "error", err)
			sess.AddFlash(fmt.Sprintf("Error fetching user data: %v", err), FlashError)
			c.UserData = nil
		case len(data) == 0:
			c.UserData = nil
		default:
			c.UserData = data
			sess.AddFlash("User data fetched successfully!", FlashSuccess)
		}
		c.Question, c.Answer = "", ""

		h.Contexts.Save(c)
		save(w, r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Direct) Ask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cookie(h.Session, r)
		c, release := acquire(h.Contexts, sess)
		defer release()

		ask(r, h.Assistant, sess, &c)

		h.Contexts.Save(c)
		save(w, r, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// ask answers the question posted in the form and keeps it in the context,
// warnings and errors are flashed.
func ask(r *http.Request, a Asker, sess *sessions.Session, c *session.Context) {
	q := r.FormValue("question")
	c.Question = q
	c.Answer = ""

	answer, err := a.Ask(r.Context(), q, c.UserData)
	if msg, ok := assistant.Warning(err); ok {
		sess.AddFlash(msg, FlashWarning)
		return
	}
	if err != nil {
		slog.Error("failed to answer question", "session", c.ID, "error", err)
		sess.AddFlash(fmt.Sprintf("Error answering the question: %v", err), FlashError)
		return
	}

	c.Answer = answer
}
