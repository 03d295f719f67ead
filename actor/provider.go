package actor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Provider owns the shared actor client and reports it as unavailable until
// the first successful health check.
type Provider struct {
	client *Client
	ready  atomic.Bool
	log    zerolog.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewProvider wraps c. Call Start to begin probing.
func NewProvider(c *Client, log zerolog.Logger) *Provider {
	return &Provider{
		client:          c,
		log:             log,
		initialInterval: 250 * time.Millisecond,
		maxInterval:     10 * time.Second,
	}
}

// Start probes the actor in the background until it answers or ctx ends.
// The returned channel is closed when probing stops.
func (p *Provider) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.initialInterval
		exp.MaxInterval = p.maxInterval
		exp.MaxElapsedTime = 0
		exp.Reset()

		err := backoff.RetryNotify(func() error {
			return p.client.Ping(ctx)
		}, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
			p.log.Warn().Err(err).Dur("retry_in", wait).Msg("actor not ready")
		})
		if err != nil {
			p.log.Debug().Err(err).Msg("actor probing stopped")
			return
		}
		p.ready.Store(true)
		p.log.Info().Msg("actor ready")
	}()
	return done
}

// Ready reports whether the actor has answered a health check.
func (p *Provider) Ready() bool { return p.ready.Load() }

// Actor implements Source for anonymous callers.
func (p *Provider) Actor() (Actor, bool) {
	if !p.Ready() {
		return nil, false
	}
	return p.client, true
}

// For returns a Source whose actor authenticates with ts.
func (p *Provider) For(ts TokenSource) Source {
	bound := p.client.As(ts)
	return SourceFunc(func() (Actor, bool) {
		if !p.Ready() {
			return nil, false
		}
		return bound, true
	})
}

// Client returns the underlying client regardless of readiness.
func (p *Provider) Client() *Client { return p.client }
