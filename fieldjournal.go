// Package fieldjournal is the web client of a personal field journal: blog
// posts, photo essays, profiles and an admin area, all read from and written
// to a remote actor through a per-session query cache.
//
// Pages are rendered by the components in views.Funcs, which callers may
// replace; the App owns handlers, middleware and the session plumbing.
package fieldjournal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/logger"
	"github.com/eringen/fieldjournal/media"
	"github.com/eringen/fieldjournal/query"
	"github.com/eringen/fieldjournal/views"
)

// App is the journal web client. It wires the actor connection, browser
// sessions, handlers, middleware and the page components together.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Views  views.Funcs
	Media  *media.Library

	provider *actor.Provider
	idp      auth.Provider
	public   *query.Client // anonymous reads for feeds
	sessions *sessionRegistry
	metrics  *prometheus.Registry
	log      zerolog.Logger

	customRoutes []func(*App)
	stopProbe    context.CancelFunc
	probed       <-chan struct{}
	ready        bool
}

// New creates an App with the given configuration. Nothing is opened or
// contacted until Setup or Start.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:  cfg,
		Echo:    echo.New(),
		Views:   views.Default(),
		metrics: prometheus.NewRegistry(),
		log:     logger.New("fieldjournal"),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup opens the media library, starts probing the actor and registers
// middleware and routes. Start calls it when needed.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("fieldjournal: SessionSecret is required")
	}

	client, err := actor.New(a.Config.BackendURL,
		actor.WithHTTPTimeout(a.Config.ActorTimeout),
		actor.WithLogger(a.log.With().Str("component", "actor").Logger()),
	)
	if err != nil {
		return fmt.Errorf("fieldjournal: init actor client: %w", err)
	}

	lib, err := media.Open(a.Config.StaticDir, "/public", a.Config.MediaDatabasePath, a.log)
	if err != nil {
		return fmt.Errorf("fieldjournal: init media library: %w", err)
	}
	a.Media = lib

	a.provider = actor.NewProvider(client, a.log)
	ctx, cancel := context.WithCancel(context.Background())
	a.stopProbe = cancel
	a.probed = a.provider.Start(ctx)

	a.idp = auth.NewRemoteProvider(a.Config.BackendURL, a.Config.ActorTimeout)
	a.public = query.NewClient(a.provider, nil,
		query.WithLogger(a.log),
		query.WithStaleAfter(a.Config.QueryStaleAfter),
	)
	a.sessions = newSessionRegistry(a.Config.SessionIdleTimeout, a.newClientSession, a.log)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Start sets the App up and serves HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.log.Info().Str("addr", a.Config.Addr).Str("backend", a.Config.BackendURL).Msg("journal listening")
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// ActorReady reports whether the remote actor answered its health check.
func (a *App) ActorReady() bool {
	return a.provider != nil && a.provider.Ready()
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework stylesheet first; the user's static dir serves the rest.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/site.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.Config.StaticDir)

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{a.metrics, prometheus.DefaultGatherer},
	}))
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/blog/", a.handleBlog)
	e.GET("/blog/:id/", a.handlePost)
	e.GET("/portfolio/", a.handlePortfolio)
	e.GET("/portfolio/:id/", a.handlePortfolioItem)
	e.GET("/about/", a.handleAbout)

	e.GET("/login/", a.handleLoginForm)
	e.POST("/login/", a.handleLogin)
	e.POST("/logout/", a.handleLogout)
	e.POST("/profile/", a.handleProfile)

	admin := e.Group("/admin", a.requireAdmin)
	admin.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/admin/blog/")
	})
	admin.GET("/blog/", a.handleAdminPosts)
	admin.GET("/blog/new/", a.handleNewPostForm)
	admin.POST("/blog/new/", a.handleCreatePost)
	admin.GET("/blog/:id/", a.handleEditPostForm)
	admin.POST("/blog/:id/", a.handleUpdatePost)
	admin.DELETE("/blog/:id/", a.handleDeletePost)

	admin.GET("/portfolio/", a.handleAdminPortfolio)
	admin.GET("/portfolio/new/", a.handleNewPortfolioForm)
	admin.POST("/portfolio/new/", a.handleCreatePortfolio)
	admin.GET("/portfolio/:id/", a.handleEditPortfolioForm)
	admin.POST("/portfolio/:id/", a.handleUpdatePortfolio)
	admin.DELETE("/portfolio/:id/", a.handleDeletePortfolio)

	admin.GET("/images/", a.handleImageList)
	admin.POST("/images/upload/", a.handleImageUpload)
	admin.DELETE("/images/:filename/", a.handleImageDelete)
}

// Close stops background work and releases resources. Call this when the
// app is shutting down.
func (a *App) Close() error {
	if a.stopProbe != nil {
		a.stopProbe()
		<-a.probed
	}
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.public != nil {
		a.public.Close()
	}
	if a.Media != nil {
		return a.Media.Close()
	}
	return nil
}
