package fieldjournal

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/authz"
	"github.com/eringen/fieldjournal/markup"
	"github.com/eringen/fieldjournal/media"
	"github.com/eringen/fieldjournal/model"
	"github.com/eringen/fieldjournal/query"
	"github.com/eringen/fieldjournal/views"
)

func excerpt(body string) string { return markup.Excerpt(body, 160) }

// withMessage appends a flash message to a local path.
func withMessage(path, msg string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "msg=" + url.QueryEscape(msg)
}

// backTo returns the local page the request came from, or "/".
func backTo(c echo.Context) string {
	ref, err := url.Parse(c.Request().Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != c.Request().Host) {
		return "/"
	}
	return ref.Path
}

// SplitLines splits s into trimmed, non-empty lines.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func postInputFromForm(c echo.Context) model.PostInput {
	return model.PostInput{
		Title:            c.FormValue("title"),
		Body:             c.FormValue("body"),
		Category:         model.Category(strings.TrimSpace(c.FormValue("category"))),
		FeaturedImageURL: model.StringPtr(c.FormValue("featuredImageUrl")),
	}.Normalize()
}

func portfolioInputFromForm(c echo.Context) model.PortfolioInput {
	return model.PortfolioInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		ImageURLs:   SplitLines(c.FormValue("imageUrls")),
		Location:    c.FormValue("location"),
	}.Normalize()
}

// validationMessage returns the user-facing text of a validation failure,
// local or reported by the actor.
func validationMessage(err error) (string, bool) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	var re *actor.RemoteError
	if actor.IsInvalid(err) && errors.As(err, &re) {
		return re.Message, true
	}
	return "", false
}

// mutationFailed renders the page for a mutation error that no form can
// show.
func (a *App) mutationFailed(c echo.Context, err error) error {
	switch {
	case errors.Is(err, query.ErrNotReady):
		return a.renderError(c, http.StatusServiceUnavailable, msgStarting)
	case actor.IsUnauthorized(err):
		return a.renderDenied(c, authz.Unauthorized)
	case actor.IsNotFound(err):
		return echo.ErrNotFound
	}
	if msg, ok := validationMessage(err); ok {
		return a.renderError(c, http.StatusBadRequest, msg)
	}
	return pkgerrors.WithStack(err)
}

func imageViews(lib *media.Library, imgs []media.Image) []views.ImageView {
	out := make([]views.ImageView, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, views.ImageView{
			Filename:   img.Filename,
			URL:        lib.URL(img.Filename),
			Width:      img.Width,
			Height:     img.Height,
			Size:       img.Size,
			UploadedAt: img.UploadedAt,
		})
	}
	return out
}
