package fieldjournal

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/eringen/fieldjournal/media"
	"github.com/eringen/fieldjournal/views"
)

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return a.renderImageList(c, http.StatusBadRequest, "No image file provided.")
	}
	if file.Size > media.MaxUploadSize {
		return a.renderImageList(c, http.StatusBadRequest, "File too large (max 10MB).")
	}

	src, err := file.Open()
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	defer src.Close()

	img, err := a.Media.Save(c.Request().Context(), src, file.Filename)
	if errors.Is(err, media.ErrInvalidImage) {
		return a.renderImageList(c, http.StatusBadRequest, "Invalid image: use PNG, JPEG or GIF.")
	}
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage("/admin/images/", "Uploaded "+img.Filename+"."))
}

func (a *App) handleImageDelete(c echo.Context) error {
	filename := c.Param("filename")
	if filename == "" {
		return a.renderImageList(c, http.StatusBadRequest, "Filename required.")
	}
	err := a.Media.Delete(c.Request().Context(), filename)
	if errors.Is(err, media.ErrInvalidFilename) {
		return a.renderImageList(c, http.StatusBadRequest, "Invalid filename.")
	}
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.Redirect(http.StatusSeeOther, withMessage("/admin/images/", "Deleted "+filename+"."))
}

func (a *App) handleImageList(c echo.Context) error {
	return a.renderImageList(c, http.StatusOK, "")
}

func (a *App) renderImageList(c echo.Context, code int, msg string) error {
	imgs, err := a.Media.List(c.Request().Context())
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	return RenderStatus(c, code, a.Views.AdminImages(views.AdminImagesPage{
		Layout:  a.adminLayout(c, "Images"),
		Images:  imageViews(a.Media, imgs),
		Message: msg,
	}))
}
