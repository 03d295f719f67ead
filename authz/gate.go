// Package authz decides whether the current session may use admin-only
// pages, based on the caller role held by the query cache.
package authz

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/model"
	"github.com/eringen/fieldjournal/query"
)

// State is the gate's view of the caller.
type State int

const (
	Anonymous State = iota
	Checking
	Admin
	NonAdmin
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Checking:
		return "checking"
	case Admin:
		return "admin"
	case NonAdmin:
		return "non-admin"
	}
	return "unknown"
}

// Decision is the outcome of an admin route check.
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Unauthorized
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Gate tracks whether the session's caller is an admin.
type Gate struct {
	q    *query.Client
	sess *auth.Session
	log  zerolog.Logger

	mu     sync.Mutex
	state  State
	cancel func()
}

// New returns a gate bound to sess. The query client must be bound to the
// same session.
func New(q *query.Client, sess *auth.Session, log zerolog.Logger) *Gate {
	g := &Gate{q: q, sess: sess, log: log}
	if _, ok := sess.Identity(); ok {
		g.state = Checking
		go g.check()
	}
	g.cancel = sess.OnChange(g.onSessionChange)
	return g
}

func (g *Gate) onSessionChange(ev auth.Event) {
	g.mu.Lock()
	if ev.Kind == auth.EventLogout {
		g.state = Anonymous
		g.mu.Unlock()
		return
	}
	g.state = Checking
	g.mu.Unlock()
	go g.check()
}

func (g *Gate) check() {
	if _, err := g.IsAdmin(context.Background()); err != nil {
		g.log.Warn().Err(err).Msg("role check failed")
	}
}

// State returns the current gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsAdmin reports whether the caller is an admin. It is false without an
// identity, without issuing a query, and false until a role was fetched
// successfully at least once.
func (g *Gate) IsAdmin(ctx context.Context) (bool, error) {
	id, ok := g.sess.Identity()
	if !ok {
		return false, nil
	}
	res, err := g.q.CallerRole(ctx)
	admin := res.HasData && res.Data == model.RoleAdmin
	g.settle(id, res.Status, admin)
	return admin, err
}

// settle moves Checking to a final state, unless the identity changed while
// the role was read.
func (g *Gate) settle(id auth.Identity, status query.Status, admin bool) {
	if status != query.StatusSuccess {
		return
	}
	cur, ok := g.sess.Identity()
	if !ok || cur != id {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Anonymous {
		return
	}
	if admin {
		g.state = Admin
	} else {
		g.state = NonAdmin
	}
}

// Decide returns the access decision for an admin-only route.
func (g *Gate) Decide(ctx context.Context) (Decision, error) {
	if _, ok := g.sess.Identity(); !ok {
		return Unauthenticated, nil
	}
	admin, err := g.IsAdmin(ctx)
	if err != nil {
		return Unauthorized, err
	}
	if !admin {
		return Unauthorized, nil
	}
	return Allowed, nil
}

// Close detaches the gate from the session.
func (g *Gate) Close() { g.cancel() }
