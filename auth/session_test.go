package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/model"
)

type fakeProvider struct {
	mu      sync.Mutex
	block   chan struct{}
	fail    error
	revoked []Identity
}

func (f *fakeProvider) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	if f.block != nil {
		<-f.block
	}
	if f.fail != nil {
		return Identity{}, f.fail
	}
	return Identity{Principal: model.Principal("p-" + creds.Handle), Token: "t-" + creds.Handle}, nil
}

func (f *fakeProvider) Revoke(ctx context.Context, id Identity) error {
	f.mu.Lock()
	f.revoked = append(f.revoked, id)
	f.mu.Unlock()
	return nil
}

func TestSession_LoginLogoutTransitions(t *testing.T) {
	p := &fakeProvider{}
	s := NewSession(p, zerolog.Nop())
	require.Equal(t, StatusIdle, s.Status())

	var events []Event
	s.OnChange(func(ev Event) { events = append(events, ev) })

	id, err := s.Login(context.Background(), Credentials{Handle: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusLoggedIn, s.Status())
	assert.Equal(t, "t-ana", s.Token())
	got, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, id, got)

	s.Logout(context.Background())
	assert.Equal(t, StatusIdle, s.Status())
	assert.Equal(t, "", s.Token())
	_, ok = s.Identity()
	assert.False(t, ok)

	require.Len(t, events, 2)
	assert.Equal(t, EventLogin, events[0].Kind)
	assert.Equal(t, EventLogout, events[1].Kind)
	assert.Equal(t, id, events[1].Identity)
	assert.Equal(t, []Identity{id}, p.revoked)
}

func TestSession_LoginFailureReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")
	s := NewSession(&fakeProvider{fail: boom}, zerolog.Nop())
	_, err := s.Login(context.Background(), Credentials{Handle: "ana", Password: "pw"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusIdle, s.Status())
}

func TestSession_ConcurrentLoginRejected(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	s := NewSession(p, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), Credentials{Handle: "a", Password: "pw"})
		done <- err
	}()
	require.Eventually(t, func() bool { return s.Status() == StatusLoggingIn }, time.Second, time.Millisecond)

	_, err := s.Login(context.Background(), Credentials{Handle: "b", Password: "pw"})
	assert.ErrorIs(t, err, ErrLoginInProgress)

	close(p.block)
	require.NoError(t, <-done)
	assert.Equal(t, StatusLoggedIn, s.Status())
}

func TestSession_RestoreSwitchesIdentity(t *testing.T) {
	s := NewSession(&fakeProvider{}, zerolog.Nop())
	var kinds []EventKind
	cancel := s.OnChange(func(ev Event) { kinds = append(kinds, ev.Kind) })

	s.Restore(Identity{Principal: "a", Token: "ta"})
	s.Restore(Identity{Principal: "a", Token: "ta"})
	s.Restore(Identity{Principal: "b", Token: "tb"})
	assert.Equal(t, []EventKind{EventLogin, EventLogout, EventLogin}, kinds)

	cancel()
	s.Logout(context.Background())
	assert.Len(t, kinds, 3, "cancelled listener should not fire")
}

func TestRemoteProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case actor.PathLogin:
			var req actor.LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(actor.ErrorBody{Error: "Unauthorized", Code: 401})
				return
			}
			_ = json.NewEncoder(w).Encode(actor.LoginResponse{Principal: "p1", Token: "tok"})
		case actor.PathLogout:
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, time.Second)
	_, err := p.Authenticate(context.Background(), Credentials{Handle: "ana", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	id, err := p.Authenticate(context.Background(), Credentials{Handle: "ana", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, Identity{Principal: "p1", Token: "tok"}, id)
	assert.NoError(t, p.Revoke(context.Background(), id))
}
