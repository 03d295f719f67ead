package fieldjournal

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/logger"
	"github.com/eringen/fieldjournal/model"
)

const (
	sessionName = "fj_session"
	ctxSession  = "client_session"

	keySessionID = "sid"
	keyPrincipal = "principal"
	keyToken     = "token"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())
	e.Pre(middleware.BodyLimit("12M"))
	// HTML forms cannot send DELETE; they post a _method field instead.
	e.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))

	e.Use(logger.RequestLogger(a.log))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "fieldjournal",
		Registerer: a.metrics,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/public/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper:      skipNonPage,
	}))

	e.Use(cacheControlMiddleware)
	e.Use(a.attachSession)
}

// skipNonPage reports paths that are files or machine endpoints rather
// than pages.
func skipNonPage(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/public") ||
		path == "/metrics" || path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt"
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/admin"), path == "/metrics":
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			// Every page shows the caller's login state.
			c.Response().Header().Set("Cache-Control", "private, no-cache")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 7,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// attachSession resolves the browser's client session from its cookie,
// issuing a new session id on first visit.
func (a *App) attachSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if skipNonPage(c) {
			return next(c)
		}
		sess, err := session.Get(sessionName, c)
		if sess == nil {
			return err
		}
		id, _ := sess.Values[keySessionID].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[keySessionID] = id
			if err := sess.Save(c.Request(), c.Response()); err != nil {
				return err
			}
		}
		c.Set(ctxSession, a.sessions.Get(id, cookieIdentity(sess)))
		return next(c)
	}
}

func cookieIdentity(sess *sessions.Session) *auth.Identity {
	p, _ := sess.Values[keyPrincipal].(string)
	tok, _ := sess.Values[keyToken].(string)
	if p == "" || tok == "" {
		return nil
	}
	return &auth.Identity{Principal: model.Principal(p), Token: tok}
}

// saveIdentity stores id in the cookie, or clears it when id is nil.
func saveIdentity(c echo.Context, id *auth.Identity) error {
	sess, err := session.Get(sessionName, c)
	if sess == nil {
		return err
	}
	if id == nil {
		delete(sess.Values, keyPrincipal)
		delete(sess.Values, keyToken)
	} else {
		sess.Values[keyPrincipal] = string(id.Principal)
		sess.Values[keyToken] = id.Token
	}
	return sess.Save(c.Request(), c.Response())
}

// clientSessionOf returns the session attached by attachSession, or nil
// on routes that skip it.
func clientSessionOf(c echo.Context) *clientSession {
	cs, _ := c.Get(ctxSession).(*clientSession)
	return cs
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
