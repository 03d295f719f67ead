// Package query is the cache layer between the journal views and the remote
// actor. Reads are cached per key and coalesced while in flight; mutations
// invalidate the keys whose collections they change; caller-scoped entries
// are purged whenever the session identity changes.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/auth"
)

// ErrNotReady is returned by mutations issued before the actor is available.
// Reads never return it; they report StatusPending instead.
var ErrNotReady = errors.New("actor not ready")

type fetchFunc func(ctx context.Context, a actor.Actor) (any, error)

// Client caches actor reads for one session.
type Client struct {
	src        actor.Source
	sess       *auth.Session
	log        zerolog.Logger
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key]map[int]func(Key)
	nextSub int
	epoch   uint64
	closed  bool

	flights       singleflight.Group
	cancelSession func()
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for fetch failures and invalidations.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithStaleAfter makes fresh entries stale once they are older than d.
// Zero keeps entries fresh until invalidated.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Client) { c.staleAfter = d }
}

// withClock is used by tests.
func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient returns a Client reading through src on behalf of sess. A nil
// session behaves as a permanently anonymous one.
func NewClient(src actor.Source, sess *auth.Session, opts ...Option) *Client {
	c := &Client{
		src:        src,
		sess:       sess,
		log:        zerolog.Nop(),
		staleAfter: 5 * time.Minute,
		now:        time.Now,
		entries:    make(map[Key]*entry),
		subs:       make(map[Key]map[int]func(Key)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if sess != nil {
		c.cancelSession = sess.OnChange(c.onSessionChange)
	}
	return c
}

// Close detaches the client from its session and drops subscriptions.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[Key]map[int]func(Key))
	c.mu.Unlock()
	if c.cancelSession != nil {
		c.cancelSession()
	}
}

func (c *Client) onSessionChange(ev auth.Event) {
	c.PurgeCallerScoped()
	if ev.Kind == auth.EventLogout {
		c.log.Debug().Str("principal", string(ev.Identity.Principal)).Msg("caller-scoped cache purged on logout")
	}
}

func (c *Client) anonymous() bool {
	if c.sess == nil {
		return true
	}
	_, ok := c.sess.Identity()
	return !ok
}

func (c *Client) expired(e *entry) bool {
	return c.staleAfter > 0 && c.now().Sub(e.updatedAt) > c.staleAfter
}

// Peek returns a copy of the entry for key without fetching.
func (c *Client) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.export(key), true
}

func (c *Client) peekOrEmpty(key Key) Entry {
	e, _ := c.Peek(key)
	return e
}

// get serves key from the cache or fetches it. The returned Entry carries
// the value to hand back; the Status tells how it was obtained.
func (c *Client) get(ctx context.Context, key Key, fetch fetchFunc) (Entry, Status, error) {
	kind := key.Kind.String()
	a, ok := c.src.Actor()
	if !ok || (key.CallerScoped() && c.anonymous()) {
		readsTotal.WithLabelValues(kind, "pending").Inc()
		return c.peekOrEmpty(key), StatusPending, nil
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: StateStale}
		c.entries[key] = e
	}
	e.fetch = fetch
	if e.hasValue && e.state == StateFresh && !c.expired(e) {
		out := e.export(key)
		c.mu.Unlock()
		readsTotal.WithLabelValues(kind, "hit").Inc()
		return out, StatusSuccess, nil
	}
	gen, epoch := e.gen, c.epoch
	e.state = StateInFlight
	// Joined under mu so a concurrent reader of the same generation either
	// sees the fresh value or shares this call. Only caller-scoped keys
	// split their flights by identity.
	scope := uint64(0)
	if key.CallerScoped() {
		scope = epoch
	}
	flight := fmt.Sprintf("%s@%d.%d", key, scope, gen)
	ch := c.flights.DoChan(flight, func() (any, error) {
		remoteCallsTotal.WithLabelValues(kind).Inc()
		// Detached: a caller giving up does not cancel the call and the
		// result is cached either way.
		v, err := fetch(context.WithoutCancel(ctx), a)
		c.store(key, gen, epoch, v, err)
		return v, err
	})
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return c.peekOrEmpty(key), StatusError, ctx.Err()
	case r := <-ch:
		if r.Shared {
			readsTotal.WithLabelValues(kind, "coalesced").Inc()
		} else {
			readsTotal.WithLabelValues(kind, "fetch").Inc()
		}
		if r.Err != nil {
			readsTotal.WithLabelValues(kind, "error").Inc()
			return c.peekOrEmpty(key), StatusError, r.Err
		}
		out := c.peekOrEmpty(key)
		out.Key, out.Value, out.HasValue, out.Err = key, r.Val, true, nil
		return out, StatusSuccess, nil
	}
}

// store records the outcome of a fetch started at generation gen and scope
// epoch. Results from a purged scope are dropped; results overtaken by an
// invalidation are kept as stale data.
func (c *Client) store(key Key, gen, epoch uint64, v any, err error) {
	c.mu.Lock()
	if key.CallerScoped() && epoch != c.epoch {
		c.mu.Unlock()
		c.log.Debug().Str("key", key.String()).Msg("discarding result fetched for a previous identity")
		return
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: StateStale}
		c.entries[key] = e
	}
	if err != nil {
		if e.gen == gen {
			e.state = StateErrored
			e.err = err
		}
		c.mu.Unlock()
		c.log.Debug().Err(err).Str("key", key.String()).Msg("fetch failed")
		return
	}
	changed := false
	if !e.hasValue || gen >= e.valueGen {
		e.value, e.hasValue, e.valueGen = v, true, gen
		e.updatedAt = c.now()
		e.err = nil
		changed = true
	}
	if e.gen == gen {
		e.state = StateFresh
	}
	fns := c.subscribersLocked(key)
	c.mu.Unlock()
	if changed {
		for _, fn := range fns {
			fn(key)
		}
	}
}

func (c *Client) subscribersLocked(key Key) []func(Key) {
	m := c.subs[key]
	fns := make([]func(Key), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

// Subscribe registers fn to be called with key after a new value for key is
// stored or the entry is purged. While subscribed, invalidating key
// re-fetches it in the background.
func (c *Client) Subscribe(key Key, fn func(Key)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func(Key))
	}
	c.subs[key][id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs[key], id)
		if len(c.subs[key]) == 0 {
			delete(c.subs, key)
		}
		c.mu.Unlock()
	}
}

// Invalidate marks every entry matched by keys stale and re-fetches the
// subscribed ones. It returns once the entries are marked; re-fetches run in
// the background.
func (c *Client) Invalidate(keys ...Key) {
	c.mu.Lock()
	var refetch []Key
	for k, e := range c.entries {
		for _, pattern := range keys {
			if !pattern.matches(k) {
				continue
			}
			e.gen++
			e.state = StateStale
			invalidationsTotal.WithLabelValues(k.Kind.String()).Inc()
			if len(c.subs[k]) > 0 && e.fetch != nil {
				refetch = append(refetch, k)
			}
			break
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.log.Debug().Str("key", k.String()).Msg("invalidated")
	}
	for _, k := range refetch {
		go c.refresh(k)
	}
}

func (c *Client) refresh(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed || e.fetch == nil {
		c.mu.Unlock()
		return
	}
	fetch := e.fetch
	c.mu.Unlock()
	if _, _, err := c.get(context.Background(), key, fetch); err != nil {
		c.log.Warn().Err(err).Str("key", key.String()).Msg("background refresh failed")
	}
}

// PurgeCallerScoped deletes every caller-scoped entry and makes sure fetches
// still in flight for the previous identity cannot write back.
func (c *Client) PurgeCallerScoped() {
	c.mu.Lock()
	c.epoch++
	var purged []func(Key)
	var purgedKeys []Key
	for k := range c.entries {
		if !k.CallerScoped() {
			continue
		}
		delete(c.entries, k)
		for _, fn := range c.subscribersLocked(k) {
			purged = append(purged, fn)
			purgedKeys = append(purgedKeys, k)
		}
	}
	c.mu.Unlock()
	for i, fn := range purged {
		fn(purgedKeys[i])
	}
}
