package fieldjournal

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/model"
	"github.com/eringen/fieldjournal/query"
	"github.com/eringen/fieldjournal/views"
)

const (
	homePostCount      = 3
	homePortfolioCount = 3
	relatedPostCount   = 3

	msgUnavailable = "The journal could not be loaded. Please try again shortly."
	msgStarting    = "The journal is starting up. Please try again in a moment."
)

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// logRead records a failed read; pages still render whatever data the
// cache holds.
func (a *App) logRead(c echo.Context, what string, err error) {
	if err != nil {
		a.log.Warn().Err(err).Str("read", what).Str("path", c.Request().URL.Path).Msg("read failed")
	}
}

func (a *App) handleHome(c echo.Context) error {
	cs := clientSessionOf(c)
	ctx := c.Request().Context()
	posts, err := cs.query.AllPosts(ctx)
	a.logRead(c, "posts", err)
	items, err := cs.query.AllPortfolio(ctx)
	a.logRead(c, "portfolio", err)

	return Render(c, a.Views.Home(views.HomePage{
		Layout: a.layout(c, views.PageMeta{
			URL:    views.BuildURL(a.Config.URL),
			JSONLD: views.WebsiteJsonLD(a.Config.site()),
		}),
		Posts:     firstN(posts.Data, homePostCount),
		Portfolio: firstN(items.Data, homePortfolioCount),
		Pending:   posts.Status == query.StatusPending,
	}))
}

// categoryChips builds the filter row: "All" followed by every category.
func categoryChips(sel *model.Category, counts map[model.Category]int) []views.CategoryChip {
	total := 0
	for _, n := range counts {
		total += n
	}
	chips := []views.CategoryChip{{Label: "All", Href: "/blog/", Count: total, Active: sel == nil}}
	for _, cat := range model.Categories() {
		chips = append(chips, views.CategoryChip{
			Label:  cat.Label(),
			Href:   "/blog/?category=" + string(cat),
			Count:  counts[cat],
			Active: sel != nil && *sel == cat,
		})
	}
	return chips
}

func (a *App) handleBlog(c echo.Context) error {
	var sel *model.Category
	if raw := c.QueryParam("category"); raw != "" {
		cat, err := model.ParseCategory(raw)
		if err != nil {
			return c.Redirect(http.StatusSeeOther, "/blog/")
		}
		sel = &cat
	}

	cs := clientSessionOf(c)
	ctx := c.Request().Context()
	// Reading posts-all refreshes it when stale; the view follows the entry.
	res, err := cs.query.AllPosts(ctx)
	a.logRead(c, "posts", err)
	view, verr := cs.categoryView(ctx)
	a.logRead(c, "category view", verr)

	posts, loaded := view.Posts(sel)
	page := views.BlogPage{
		Layout:  a.layout(c, views.PageMeta{Title: "Journal", URL: views.BuildURL(a.Config.URL, "blog")}),
		Posts:   posts,
		Chips:   categoryChips(sel, view.Counts()),
		Pending: !loaded && res.Status == query.StatusPending,
	}
	if !loaded && err != nil {
		page.Error = msgUnavailable
	}
	return Render(c, a.Views.Blog(page))
}

func (a *App) handlePost(c echo.Context) error {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return echo.ErrNotFound
	}
	cs := clientSessionOf(c)
	ctx := c.Request().Context()
	res, err := cs.query.Post(ctx, id)
	switch {
	case res.Status == query.StatusPending:
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	case !res.HasData:
		return pkgerrors.WithStack(err)
	case res.Data == nil:
		return echo.ErrNotFound
	}
	a.logRead(c, "post", err)
	post := *res.Data

	all, err := cs.query.AllPosts(ctx)
	a.logRead(c, "posts", err)

	site := a.Config.site()
	return Render(c, a.Views.Post(views.PostPage{
		Layout: a.layout(c, views.PageMeta{
			Title:       post.Title,
			Description: excerpt(post.Body),
			URL:         views.BuildURL(a.Config.URL, "blog", post.ID.String()),
			OGType:      "article",
			JSONLD:      views.BlogPostingJsonLD(site, post),
		}),
		Post:    post,
		Related: views.RelatedPosts(post, all.Data, relatedPostCount),
	}))
}

func (a *App) handlePortfolio(c echo.Context) error {
	cs := clientSessionOf(c)
	res, err := cs.query.AllPortfolio(c.Request().Context())
	a.logRead(c, "portfolio", err)
	page := views.PortfolioPage{
		Layout:  a.layout(c, views.PageMeta{Title: "Portfolio", URL: views.BuildURL(a.Config.URL, "portfolio")}),
		Items:   res.Data,
		Pending: res.Status == query.StatusPending,
	}
	if !res.HasData && err != nil {
		page.Error = msgUnavailable
	}
	return Render(c, a.Views.Portfolio(page))
}

// handlePortfolioItem shows one essay, cover first. ?photo selects another
// image and wraps around.
func (a *App) handlePortfolioItem(c echo.Context) error {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return echo.ErrNotFound
	}
	res, err := clientSessionOf(c).query.PortfolioItem(c.Request().Context(), id)
	switch {
	case res.Status == query.StatusPending:
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	case !res.HasData:
		return pkgerrors.WithStack(err)
	case res.Data == nil:
		return echo.ErrNotFound
	}
	a.logRead(c, "portfolio item", err)
	item := *res.Data
	photo, _ := strconv.Atoi(c.QueryParam("photo"))

	l := a.layout(c, views.PageMeta{
		Title:       item.Title,
		Description: excerpt(item.Description),
		URL:         views.BuildURL(a.Config.URL, "portfolio", item.ID.String()),
	})
	return Render(c, a.Views.PortfolioItem(views.NewPortfolioItemPage(l, item, photo)))
}

func (a *App) handleAbout(c echo.Context) error {
	cs := clientSessionOf(c)
	res, err := cs.query.Stats(c.Request().Context())
	a.logRead(c, "stats", err)
	page := views.AboutPage{
		Layout: a.layout(c, views.PageMeta{Title: "About", URL: views.BuildURL(a.Config.URL, "about")}),
	}
	if res.HasData {
		stats := res.Data
		page.Stats = &stats
	}
	return Render(c, a.Views.About(page))
}

func (a *App) handleLoginForm(c echo.Context) error {
	if _, ok := clientSessionOf(c).auth.Identity(); ok {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.Login(views.LoginPage{
		Layout: a.layout(c, views.PageMeta{Title: "Log in"}),
	}))
}

func (a *App) handleLogin(c echo.Context) error {
	cs := clientSessionOf(c)
	handle := strings.TrimSpace(c.FormValue("handle"))
	id, err := cs.auth.Login(c.Request().Context(), auth.Credentials{
		Handle:   handle,
		Password: c.FormValue("password"),
	})
	if err != nil {
		page := views.LoginPage{Layout: a.layout(c, views.PageMeta{Title: "Log in"}), Handle: handle}
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			page.Error = "Invalid handle or password."
			return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(page))
		case errors.Is(err, auth.ErrLoginInProgress):
			page.Error = "A login is already in progress."
			return RenderStatus(c, http.StatusConflict, a.Views.Login(page))
		}
		a.log.Error().Err(err).Str("handle", handle).Msg("login failed")
		page.Error = "Login is unavailable right now."
		return RenderStatus(c, http.StatusBadGateway, a.Views.Login(page))
	}
	if err := saveIdentity(c, &id); err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleLogout(c echo.Context) error {
	clientSessionOf(c).auth.Logout(c.Request().Context())
	if err := saveIdentity(c, nil); err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleProfile(c echo.Context) error {
	cs := clientSessionOf(c)
	if _, ok := cs.auth.Identity(); !ok {
		return c.Redirect(http.StatusSeeOther, "/login/")
	}
	name := strings.TrimSpace(c.FormValue("name"))
	back := backTo(c)
	if name == "" {
		return c.Redirect(http.StatusSeeOther, withMessage(back, "Please enter a name."))
	}
	if err := cs.query.SaveProfile(c.Request().Context(), model.UserProfile{Name: name}); err != nil {
		return a.mutationFailed(c, err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage(back, "Profile saved."))
}

func (a *App) handleSitemap(c echo.Context) error {
	res, err := a.public.AllPosts(c.Request().Context())
	if !res.HasData && err != nil {
		return pkgerrors.WithStack(err)
	}
	items, err := a.public.AllPortfolio(c.Request().Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("sitemap: portfolio unavailable")
	}
	return a.renderSitemap(c, res.Data, items.Data)
}

func (a *App) handleFeed(c echo.Context) error {
	res, err := a.public.AllPosts(c.Request().Context())
	if !res.HasData && err != nil {
		return pkgerrors.WithStack(err)
	}
	return a.renderRSS(c, res.Data)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	msg := http.StatusText(code)
	switch {
	case code == http.StatusNotFound:
		msg = "This page does not exist."
	case code >= 500:
		a.log.Error().Stack().Err(err).Str("path", c.Request().URL.Path).Msg("server error")
		msg = "Something went wrong on our side."
	}
	if rerr := a.renderError(c, code, msg); rerr != nil {
		a.log.Error().Err(rerr).Msg("render error page")
	}
}
