package fieldjournal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/authz"
	"github.com/eringen/fieldjournal/query"
)

// clientSession is the server-side state of one browser: its
// authentication session, the query cache bound to it and the admin gate.
type clientSession struct {
	id    string
	auth  *auth.Session
	query *query.Client
	gate  *authz.Gate

	mu         sync.Mutex
	categories *query.CategoryView
	lastSeen   time.Time
}

// newClientSession builds the per-browser stack. The query client must
// subscribe to the session before the gate does.
func (a *App) newClientSession(id string) *clientSession {
	log := a.log.With().Str("session", id).Logger()
	sess := auth.NewSession(a.idp, log)
	q := query.NewClient(a.provider.For(actor.TokenFunc(sess.Token)), sess,
		query.WithLogger(log),
		query.WithStaleAfter(a.Config.QueryStaleAfter),
	)
	return &clientSession{
		id:    id,
		auth:  sess,
		query: q,
		gate:  authz.New(q, sess, log),
	}
}

// categoryView returns the session's category projection, creating it on
// first use. A failed initial load still keeps the view; it fills in on the
// next successful posts-all fetch.
func (cs *clientSession) categoryView(ctx context.Context) (*query.CategoryView, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.categories != nil {
		return cs.categories, nil
	}
	v, err := query.NewCategoryView(ctx, cs.query)
	cs.categories = v
	return v, err
}

func (cs *clientSession) close() {
	cs.mu.Lock()
	if cs.categories != nil {
		cs.categories.Close()
		cs.categories = nil
	}
	cs.mu.Unlock()
	cs.gate.Close()
	cs.query.Close()
}

// sessionRegistry maps browser session ids to their state and drops
// sessions idle for longer than idle.
type sessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*clientSession
	idle    time.Duration
	build   func(id string) *clientSession
	log     zerolog.Logger
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
}

func newSessionRegistry(idle time.Duration, build func(string) *clientSession, log zerolog.Logger) *sessionRegistry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	r := &sessionRegistry{
		entries: make(map[string]*clientSession),
		idle:    idle,
		build:   build,
		log:     log,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

func (r *sessionRegistry) cleanup() {
	defer close(r.done)
	ticker := time.NewTicker(r.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle closes every session not seen within the idle window and
// returns how many were dropped.
func (r *sessionRegistry) evictIdle() int {
	cutoff := r.now().Add(-r.idle)
	var stale []*clientSession
	r.mu.Lock()
	for id, cs := range r.entries {
		cs.mu.Lock()
		seen := cs.lastSeen
		cs.mu.Unlock()
		if seen.Before(cutoff) {
			stale = append(stale, cs)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	for _, cs := range stale {
		cs.close()
	}
	if len(stale) > 0 {
		r.log.Debug().Int("evicted", len(stale)).Int("remaining", r.Len()).Msg("idle sessions dropped")
	}
	return len(stale)
}

// Get returns the session for id, creating it when unknown. A non-nil
// restore identity is attached to a session that has none.
func (r *sessionRegistry) Get(id string, restore *auth.Identity) *clientSession {
	r.mu.Lock()
	cs, ok := r.entries[id]
	if !ok {
		cs = r.build(id)
		r.entries[id] = cs
	}
	r.mu.Unlock()

	cs.mu.Lock()
	cs.lastSeen = r.now()
	cs.mu.Unlock()

	if restore != nil {
		if _, has := cs.auth.Identity(); !has && cs.auth.Status() == auth.StatusIdle {
			cs.auth.Restore(*restore)
		}
	}
	return cs
}

// Len returns the number of live sessions.
func (r *sessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the janitor and closes every session.
func (r *sessionRegistry) Close() {
	close(r.stop)
	<-r.done
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*clientSession)
	r.mu.Unlock()
	for _, cs := range entries {
		cs.close()
	}
}
