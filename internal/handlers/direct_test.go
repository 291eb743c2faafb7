package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/assistant"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/mighty/api"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectFixture(t *testing.T) (*fakeData, *fakeModel, *browser) {
	t.Helper()

	data := &fakeData{data: api.UserData{"name": "Ada", "passport": "X123"}}
	model := &fakeModel{answer: "Ada"}

	h := NewDirect(
		session.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		session.NewStore(time.Hour),
		data,
		assistant.New(model),
	)

	return data, model, newBrowser(t, h.Routes)
}

func TestDirect_Home(t *testing.T) {
	data, _, b := newDirectFixture(t)

	status, body := b.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Please fetch your private data first.")
	assert.Contains(t, body, DirectTitle)
	assert.Zero(t, data.calls)
}

func TestDirect_Fetch(t *testing.T) {
	data, model, b := newDirectFixture(t)

	_, body := b.post("/fetch", nil)
	assert.Contains(t, body, "User data fetched successfully!")
	assert.Contains(t, body, "X123")
	assert.Equal(t, 1, data.calls)

	_, body = b.post("/ask", url.Values{"question": {"What is my name?"}})
	assert.Contains(t, body, "<p>Ada</p>")
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "User question: What is my name?")

	data.err = errors.New("status 401: invalid signature")
	_, body = b.post("/fetch", nil)
	assert.Contains(t, body, "Error fetching user data: status 401: invalid signature")
	assert.Contains(t, body, "Please fetch your private data first.")
	assert.NotContains(t, body, "X123")
}

func TestDirect_FetchEmpty(t *testing.T) {
	data, _, b := newDirectFixture(t)
	data.data = api.UserData{}

	_, body := b.post("/fetch", nil)
	assert.NotContains(t, body, "User data fetched successfully!")
	assert.Contains(t, body, "Please fetch your private data first.")
}

func TestDirect_AskWarnings(t *testing.T) {
	_, model, b := newDirectFixture(t)

	_, body := b.post("/ask", url.Values{"question": {"What is my name?"}})
	assert.Contains(t, body, "No user data available.")

	_, _ = b.post("/fetch", nil)
	_, body = b.post("/ask", url.Values{"question": {""}})
	assert.Contains(t, body, "Please enter a question.")

	assert.Empty(t, model.prompts)
}

func TestLogger(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?code=secret", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
