package fieldjournal

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/views"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "FIELDJOURNAL"

// SiteConfig holds all configuration for a journal site.
type SiteConfig struct {
	Name        string `envconfig:"NAME"`        // Site name (default "Field Journal")
	URL         string `envconfig:"URL"`         // Canonical URL (default "http://localhost:3000")
	Description string `envconfig:"DESCRIPTION"` // Site description for RSS and meta tags
	Author      string `envconfig:"AUTHOR"`      // Author name for JSON-LD

	Addr       string `envconfig:"ADDR"`        // Listen address (default ":3000")
	BackendURL string `envconfig:"BACKEND_URL"` // Remote actor base URL (default "http://localhost:4000")

	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"` // Required: cookie signing secret
	CookieSecure  bool   `envconfig:"COOKIE_SECURE"`                  // Set true for HTTPS

	StaticDir         string `envconfig:"STATIC_DIR"`          // User static assets and uploads (default "public")
	MediaDatabasePath string `envconfig:"MEDIA_DATABASE_PATH"` // Upload metadata SQLite path (default "data/media.db")

	QueryStaleAfter    time.Duration `envconfig:"QUERY_STALE_AFTER"`    // Cached reads expire after this (default 5m)
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT"` // Idle browser sessions are dropped (default 30m)
	ActorTimeout       time.Duration `envconfig:"ACTOR_TIMEOUT"`        // Per-call timeout to the actor (default 10s)
}

// LoadConfig reads a SiteConfig from FIELDJOURNAL_* environment variables and
// fills in defaults.
func LoadConfig() (SiteConfig, error) {
	var cfg SiteConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Field Journal"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:4000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.MediaDatabasePath == "" {
		c.MediaDatabasePath = "data/media.db"
	}
	if c.QueryStaleAfter == 0 {
		c.QueryStaleAfter = 5 * time.Minute
	}
	if c.SessionIdleTimeout == 0 {
		c.SessionIdleTimeout = 30 * time.Minute
	}
	if c.ActorTimeout == 0 {
		c.ActorTimeout = 10 * time.Second
	}
}

func (c SiteConfig) site() views.SiteConfig {
	return views.SiteConfig{Name: c.Name, URL: c.URL, Description: c.Description, Author: c.Author}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}

// WithViews replaces the stock page components.
func WithViews(v views.Funcs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}
