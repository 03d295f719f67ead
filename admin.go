package fieldjournal

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/eringen/fieldjournal/authz"
	"github.com/eringen/fieldjournal/model"
	"github.com/eringen/fieldjournal/query"
	"github.com/eringen/fieldjournal/views"
)

// requireAdmin lets only admins through. Anyone else gets the access denied
// page; a failed role check counts as not admin.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cs := clientSessionOf(c)
		d, err := cs.gate.Decide(c.Request().Context())
		if err != nil {
			a.log.Warn().Err(err).Str("path", c.Request().URL.Path).Msg("admin check failed")
		}
		if d != authz.Allowed {
			return a.renderDenied(c, d)
		}
		return next(c)
	}
}

func (a *App) adminLayout(c echo.Context, title string) views.Layout {
	return a.layout(c, views.PageMeta{Title: title})
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (model.ID, error) {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

// pickerImages lists uploads for the forms' image picker. Failures only
// hide the picker.
func (a *App) pickerImages(c echo.Context) []views.ImageView {
	imgs, err := a.Media.List(c.Request().Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("list images")
		return nil
	}
	return imageViews(a.Media, imgs)
}

func (a *App) handleAdminPosts(c echo.Context) error {
	res, err := clientSessionOf(c).query.AllPosts(c.Request().Context())
	if res.Status == query.StatusPending {
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	}
	if !res.HasData {
		return pkgerrors.WithStack(err)
	}
	return Render(c, a.Views.AdminPosts(views.AdminPostsPage{
		Layout: a.adminLayout(c, "Posts"),
		Posts:  res.Data,
	}))
}

func (a *App) renderPostForm(c echo.Context, code int, form views.PostForm) error {
	form.Layout = a.adminLayout(c, "Edit post")
	form.Images = a.pickerImages(c)
	return RenderStatus(c, code, a.Views.PostForm(form))
}

func postForm(id model.ID, in model.PostInput) views.PostForm {
	f := views.PostForm{ID: id, Title: in.Title, Body: in.Body, Category: in.Category}
	if in.FeaturedImageURL != nil {
		f.FeaturedImageURL = *in.FeaturedImageURL
	}
	return f
}

func (a *App) handleNewPostForm(c echo.Context) error {
	return a.renderPostForm(c, http.StatusOK, views.PostForm{})
}

func (a *App) handleEditPostForm(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := clientSessionOf(c).query.Post(c.Request().Context(), id)
	switch {
	case res.Status == query.StatusPending:
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	case !res.HasData:
		return pkgerrors.WithStack(err)
	case res.Data == nil:
		return echo.ErrNotFound
	}
	p := res.Data
	return a.renderPostForm(c, http.StatusOK, postForm(p.ID, model.PostInput{
		Title: p.Title, Body: p.Body, Category: p.Category, FeaturedImageURL: p.FeaturedImageURL,
	}))
}

// savePost validates the form and runs save; validation failures re-render
// the form without reaching the actor.
func (a *App) savePost(c echo.Context, id model.ID, save func(model.PostInput) error, done string) error {
	in := postInputFromForm(c)
	if err := in.Validate(); err != nil {
		msg, _ := validationMessage(err)
		form := postForm(id, in)
		form.Error = msg
		return a.renderPostForm(c, http.StatusUnprocessableEntity, form)
	}
	if err := save(in); err != nil {
		if msg, ok := validationMessage(err); ok {
			form := postForm(id, in)
			form.Error = msg
			return a.renderPostForm(c, http.StatusUnprocessableEntity, form)
		}
		return a.mutationFailed(c, err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage("/admin/blog/", done))
}

func (a *App) handleCreatePost(c echo.Context) error {
	q := clientSessionOf(c).query
	return a.savePost(c, 0, func(in model.PostInput) error {
		id, err := q.CreatePost(c.Request().Context(), in)
		if err == nil {
			a.log.Info().Str("id", id.String()).Str("category", string(in.Category)).Msg("post created")
		}
		return err
	}, "Post created.")
}

func (a *App) handleUpdatePost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	q := clientSessionOf(c).query
	return a.savePost(c, id, func(in model.PostInput) error {
		return q.UpdatePost(c.Request().Context(), id, in)
	}, "Post updated.")
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := clientSessionOf(c).query.DeletePost(c.Request().Context(), id); err != nil {
		return a.mutationFailed(c, err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage("/admin/blog/", "Post deleted."))
}

func (a *App) handleAdminPortfolio(c echo.Context) error {
	res, err := clientSessionOf(c).query.AllPortfolio(c.Request().Context())
	if res.Status == query.StatusPending {
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	}
	if !res.HasData {
		return pkgerrors.WithStack(err)
	}
	return Render(c, a.Views.AdminPortfolio(views.AdminPortfolioPage{
		Layout: a.adminLayout(c, "Portfolio"),
		Items:  res.Data,
	}))
}

func (a *App) renderPortfolioForm(c echo.Context, code int, form views.PortfolioForm) error {
	form.Layout = a.adminLayout(c, "Edit portfolio item")
	form.Images = a.pickerImages(c)
	return RenderStatus(c, code, a.Views.PortfolioForm(form))
}

func portfolioForm(id model.ID, in model.PortfolioInput) views.PortfolioForm {
	return views.PortfolioForm{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		ImageURLs:   strings.Join(in.ImageURLs, "\n"),
		Location:    in.Location,
	}
}

func (a *App) handleNewPortfolioForm(c echo.Context) error {
	return a.renderPortfolioForm(c, http.StatusOK, views.PortfolioForm{Location: model.DefaultLocation})
}

func (a *App) handleEditPortfolioForm(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
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
	it := res.Data
	return a.renderPortfolioForm(c, http.StatusOK, portfolioForm(it.ID, model.PortfolioInput{
		Title: it.Title, Description: it.Description, ImageURLs: it.ImageURLs, Location: it.Location,
	}))
}

func (a *App) savePortfolio(c echo.Context, id model.ID, save func(model.PortfolioInput) error, done string) error {
	in := portfolioInputFromForm(c)
	err := in.Validate()
	if err == nil {
		if err = save(in); err == nil {
			return c.Redirect(http.StatusSeeOther, withMessage("/admin/portfolio/", done))
		}
	}
	msg, ok := validationMessage(err)
	if !ok {
		return a.mutationFailed(c, err)
	}
	form := portfolioForm(id, in)
	form.Error = msg
	return a.renderPortfolioForm(c, http.StatusUnprocessableEntity, form)
}

func (a *App) handleCreatePortfolio(c echo.Context) error {
	q := clientSessionOf(c).query
	return a.savePortfolio(c, 0, func(in model.PortfolioInput) error {
		_, err := q.CreatePortfolioItem(c.Request().Context(), in)
		return err
	}, "Portfolio item created.")
}

func (a *App) handleUpdatePortfolio(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	q := clientSessionOf(c).query
	return a.savePortfolio(c, id, func(in model.PortfolioInput) error {
		return q.UpdatePortfolioItem(c.Request().Context(), id, in)
	}, "Portfolio item updated.")
}

func (a *App) handleDeletePortfolio(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := clientSessionOf(c).query.DeletePortfolioItem(c.Request().Context(), id); err != nil {
		return a.mutationFailed(c, err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage("/admin/portfolio/", "Portfolio item deleted."))
}
