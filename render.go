package fieldjournal

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/fieldjournal/authz"
	"github.com/eringen/fieldjournal/query"
	"github.com/eringen/fieldjournal/views"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// layout builds the page chrome for the current caller. The profile is read
// through the session cache; a caller who is logged in, whose profile was
// fetched and turned out absent is prompted to create one.
func (a *App) layout(c echo.Context, meta views.PageMeta) views.Layout {
	l := views.Layout{
		Site:  a.Config.site(),
		Meta:  meta,
		CSRF:  CsrfToken(c),
		Flash: c.QueryParam("msg"),
	}
	cs := clientSessionOf(c)
	if cs == nil {
		return l
	}
	id, ok := cs.auth.Identity()
	if !ok {
		return l
	}
	l.LoggedIn = true
	l.Principal = id.Principal
	l.IsAdmin = cs.gate.State() == authz.Admin

	res, err := cs.query.CallerProfile(c.Request().Context())
	if err != nil {
		a.log.Warn().Err(err).Str("principal", string(id.Principal)).Msg("load caller profile")
	}
	if res.Status == query.StatusSuccess && res.HasData {
		if res.Data == nil {
			l.AskProfile = true
		} else {
			l.Name = res.Data.Name
		}
	}
	return l
}

func (a *App) renderError(c echo.Context, code int, msg string) error {
	return RenderStatus(c, code, a.Views.Error(views.ErrorPage{
		Layout:  a.layout(c, views.PageMeta{Title: http.StatusText(code)}),
		Code:    code,
		Message: msg,
	}))
}

func (a *App) renderDenied(c echo.Context, d authz.Decision) error {
	return RenderStatus(c, http.StatusForbidden, a.Views.AccessDenied(views.AccessDeniedPage{
		Layout:          a.layout(c, views.PageMeta{Title: "Access denied"}),
		Unauthenticated: d == authz.Unauthenticated,
	}))
}
