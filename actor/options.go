package actor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds every remote call. The query layer imposes no
// timeouts of its own, so this is the only one. The value must be > 0.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.rc.SetTimeout(d)
		return nil
	}
}

// WithTokenSource sets the identity the client authenticates as.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) error {
		c.tokens = ts
		return nil
	}
}

// WithLogger routes resty's own logging and debug output through l.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.rc.SetLogger(restyLogger{l: l})
		return nil
	}
}

// WithDebugLogging logs every request and response. Do not enable in
// production; bearer tokens end up in the logs.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.rc.SetDebug(enabled)
		return nil
	}
}

// restyLogger adapts zerolog to resty.Logger.
type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug().Msgf(format, v...) }
