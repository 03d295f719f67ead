// Package auth models the authentication session the journal client runs
// under: the current identity, its login status and change notifications.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/model"
)

// ErrLoginInProgress is returned when Login is called while another login
// is still running.
var ErrLoginInProgress = errors.New("login already in progress")

// Status is the login status of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusLoggingIn
	StatusLoggedIn
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoggingIn:
		return "logging-in"
	case StatusLoggedIn:
		return "logged-in"
	}
	return "unknown"
}

// Identity is an authenticated caller and the bearer token proving it.
type Identity struct {
	Principal model.Principal
	Token     string
}

// Credentials are exchanged for an Identity by a Provider.
type Credentials struct {
	Handle   string
	Password string
}

// Provider authenticates credentials and revokes identities.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
	Revoke(ctx context.Context, id Identity) error
}

// EventKind distinguishes session changes.
type EventKind int

const (
	EventLogin EventKind = iota
	EventLogout
)

// Event is delivered to listeners after the session changed.
type Event struct {
	Kind     EventKind
	Identity Identity // new identity on login, previous one on logout
}

// Session holds the identity of one client. The zero value is not usable;
// call NewSession.
type Session struct {
	mu        sync.Mutex
	provider  Provider
	identity  *Identity
	status    Status
	nextID    int
	listeners map[int]func(Event)
	order     []int
	log       zerolog.Logger
}

// NewSession returns an anonymous, idle session.
func NewSession(p Provider, log zerolog.Logger) *Session {
	return &Session{
		provider:  p,
		listeners: make(map[int]func(Event)),
		log:       log,
	}
}

// Identity returns the current identity, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Token returns the bearer token of the current identity or "".
func (s *Session) Token() string {
	id, _ := s.Identity()
	return id.Token
}

// Status returns the login status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// OnChange registers fn for login and logout events. Listeners run
// synchronously, in registration order, after the change is visible.
func (s *Session) OnChange(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.order))
	kept := s.order[:0]
	for _, id := range s.order {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
			kept = append(kept, id)
		}
	}
	s.order = kept
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Login authenticates creds. On failure the session returns to idle and the
// provider's error is returned unchanged.
func (s *Session) Login(ctx context.Context, creds Credentials) (Identity, error) {
	s.mu.Lock()
	if s.status == StatusLoggingIn {
		s.mu.Unlock()
		return Identity{}, ErrLoginInProgress
	}
	prev := s.identity
	s.status = StatusLoggingIn
	s.mu.Unlock()

	id, err := s.provider.Authenticate(ctx, creds)

	s.mu.Lock()
	if err != nil {
		if prev != nil {
			s.status = StatusLoggedIn
		} else {
			s.status = StatusIdle
		}
		s.mu.Unlock()
		return Identity{}, err
	}
	s.identity = &id
	s.status = StatusLoggedIn
	s.mu.Unlock()

	if prev != nil {
		s.emit(Event{Kind: EventLogout, Identity: *prev})
	}
	s.log.Info().Str("principal", string(id.Principal)).Msg("logged in")
	s.emit(Event{Kind: EventLogin, Identity: id})
	return id, nil
}

// Restore attaches an identity obtained earlier, without contacting the
// provider. It is a no-op when the same identity is already attached.
func (s *Session) Restore(id Identity) {
	s.mu.Lock()
	if s.identity != nil && *s.identity == id {
		s.mu.Unlock()
		return
	}
	prev := s.identity
	s.identity = &id
	s.status = StatusLoggedIn
	s.mu.Unlock()
	if prev != nil {
		s.emit(Event{Kind: EventLogout, Identity: *prev})
	}
	s.emit(Event{Kind: EventLogin, Identity: id})
}

// Logout clears the identity. Remote revocation failures are logged and do
// not keep the identity attached.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	prev := s.identity
	s.identity = nil
	s.status = StatusIdle
	s.mu.Unlock()
	if prev == nil {
		return
	}
	if err := s.provider.Revoke(ctx, *prev); err != nil {
		s.log.Warn().Err(err).Str("principal", string(prev.Principal)).Msg("revoke identity")
	}
	s.emit(Event{Kind: EventLogout, Identity: *prev})
}
