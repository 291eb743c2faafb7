package session

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the step of the authorization flow a session has reached.
type State int

const (
	// Idle waits for an authorization code.
	Idle State = iota
	// Exchanging redeems a code for a token and loads the user data.
	Exchanging
	// Ready holds a token and the user data, not submitted yet.
	Ready
	// Complete exposes the assistant.
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Exchanging:
		return "exchanging"
	case Ready:
		return "ready"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid session transition")

// Context is what a browser session keeps between requests. Token and
// UserData are only set in the Ready and Complete states.
type Context struct {
	ID       string
	State    State
	Token    string
	UserData map[string]any
	Question string
	Answer   string
	Updated  time.Time
}

func (c *Context) transition(from, to State) error {
	if c.State != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, c.State)
	}
	c.State = to
	return nil
}

// BeginExchange moves an idle session into the exchange of a code.
func (c *Context) BeginExchange() error {
	return c.transition(Idle, Exchanging)
}

// Authorize stores the outcome of a successful exchange.
func (c *Context) Authorize(token string, data map[string]any) error {
	if err := c.transition(Exchanging, Ready); err != nil {
		return err
	}
	c.Token = token
	c.UserData = data
	return nil
}

// Fail abandons the exchange, nothing is kept.
func (c *Context) Fail() error {
	if err := c.transition(Exchanging, Idle); err != nil {
		return err
	}
	c.Token = ""
	c.UserData = nil
	return nil
}

// Submit marks the fetched data as submitted.
func (c *Context) Submit() error {
	return c.transition(Ready, Complete)
}

// Reset drops everything but the session id.
func (c *Context) Reset() {
	*c = Context{ID: c.ID}
}

// HasData reports whether user data was loaded, whatever the flow.
func (c *Context) HasData() bool {
	return len(c.UserData) > 0
}

func (c Context) clone() Context {
	c.UserData = maps.Clone(c.UserData)
	return c
}

// Store keeps session contexts in memory only, tokens never reach the disk.
type Store struct {
	lock     sync.Mutex
	contexts map[string]Context
	locks    map[string]*idLock
	maxAge   time.Duration
	now      func() time.Time
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(maxAge time.Duration) *Store {
	return &Store{
		contexts: make(map[string]Context),
		locks:    make(map[string]*idLock),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

func (s *Store) expired(c Context) bool {
	return s.maxAge > 0 && s.now().Sub(c.Updated) > s.maxAge
}

// Lock serializes the requests of a session, it returns the function
// releasing the lock. An empty id locks nothing.
func (s *Store) Lock(id string) func() {
	if id == "" {
		return func() {}
	}

	s.lock.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.lock.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.lock.Lock()
		defer s.lock.Unlock()

		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
	}
}

// Load returns a copy of the context with the given id, or a new idle context
// when the id is unknown or expired.
func (s *Store) Load(id string) Context {
	s.lock.Lock()
	defer s.lock.Unlock()

	if c, ok := s.contexts[id]; ok && id != "" {
		if !s.expired(c) {
			return c.clone()
		}
		delete(s.contexts, id)
	}

	return Context{ID: uuid.NewString(), State: Idle}
}

// Save stores a copy of the context and drops the contexts that expired.
func (s *Store) Save(c Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for id, other := range s.contexts {
		if s.expired(other) {
			delete(s.contexts, id)
		}
	}

	c.Updated = s.now()
	s.contexts[c.ID] = c.clone()
}

func (s *Store) Delete(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.contexts, id)
}

func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.contexts)
}
