package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/fieldjournal/markup"
	"github.com/eringen/fieldjournal/model"
)

// Funcs holds the page components the web client renders. Any field can be
// replaced to customize a page; Default provides the stock set.
type Funcs struct {
	Home           func(HomePage) templ.Component
	Blog           func(BlogPage) templ.Component
	Post           func(PostPage) templ.Component
	Portfolio      func(PortfolioPage) templ.Component
	PortfolioItem  func(PortfolioItemPage) templ.Component
	About          func(AboutPage) templ.Component
	Login          func(LoginPage) templ.Component
	AccessDenied   func(AccessDeniedPage) templ.Component
	AdminPosts     func(AdminPostsPage) templ.Component
	PostForm       func(PostForm) templ.Component
	AdminPortfolio func(AdminPortfolioPage) templ.Component
	PortfolioForm  func(PortfolioForm) templ.Component
	AdminImages    func(AdminImagesPage) templ.Component
	Error          func(ErrorPage) templ.Component
}

//go:embed templates/*.html
var templateFS embed.FS

var funcMap = template.FuncMap{
	"date":       FormatDate,
	"isodate":    ISODate,
	"ago":        Ago,
	"agotime":    AgoTime,
	"bytes":      Bytes,
	"chipclass":  ChipClass,
	"postpath":   PostPath,
	"essaypath":  PortfolioPath,
	"inc":        func(i int) int { return i + 1 },
	"categories": model.Categories,
	"label":      func(c model.Category) string { return c.Label() },
	"excerpt":    markup.Excerpt,
	"body":       func(s string) template.HTML { return template.HTML(markup.HTML(s)) },
	"jsonld":     func(s string) template.JS { return template.JS(s) },
}

func parsePage(name string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/layout.html"))
	return template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
}

// page returns a component constructor executing the named page inside the
// shared layout.
func page[T any](name string) func(T) templ.Component {
	t := parsePage(name)
	return func(data T) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			return t.ExecuteTemplate(w, "layout", data)
		})
	}
}

// Default returns the stock page components.
func Default() Funcs {
	return Funcs{
		Home:           page[HomePage]("home"),
		Blog:           page[BlogPage]("blog"),
		Post:           page[PostPage]("post"),
		Portfolio:      page[PortfolioPage]("portfolio"),
		PortfolioItem:  page[PortfolioItemPage]("portfolio_item"),
		About:          page[AboutPage]("about"),
		Login:          page[LoginPage]("login"),
		AccessDenied:   page[AccessDeniedPage]("denied"),
		AdminPosts:     page[AdminPostsPage]("admin_posts"),
		PostForm:       page[PostForm]("post_form"),
		AdminPortfolio: page[AdminPortfolioPage]("admin_portfolio"),
		PortfolioForm:  page[PortfolioForm]("portfolio_form"),
		AdminImages:    page[AdminImagesPage]("admin_images"),
		Error:          page[ErrorPage]("error"),
	}
}
