package views

import (
	"time"

	"github.com/eringen/fieldjournal/model"
)

// SiteConfig holds site-wide settings every page is rendered with.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
}

// Layout is the chrome shared by every page.
type Layout struct {
	Site      SiteConfig
	Meta      PageMeta
	CSRF      string
	LoggedIn  bool
	Principal model.Principal
	Name      string // saved profile name, if any
	IsAdmin   bool
	// AskProfile is set when the caller is logged in, the profile was
	// fetched and none exists yet.
	AskProfile bool
	Flash      string
}

// CategoryChip is one filter option on the blog listing.
type CategoryChip struct {
	Label  string
	Href   string
	Count  int
	Active bool
}

type HomePage struct {
	Layout
	Posts     []model.BlogPost
	Portfolio []model.PortfolioItem
	Stats     *model.BlogStats
	Pending   bool
}

type BlogPage struct {
	Layout
	Posts   []model.BlogPost
	Chips   []CategoryChip
	Pending bool
	Error   string
}

type PostPage struct {
	Layout
	Post    model.BlogPost
	Related []model.BlogPost
}

type PortfolioPage struct {
	Layout
	Items   []model.PortfolioItem
	Pending bool
	Error   string
}

// PortfolioItemPage shows one essay photo by photo. Photo is empty when the
// essay has no images yet.
type PortfolioItemPage struct {
	Layout
	Item  model.PortfolioItem
	Index int
	Photo string
	Prev  string
	Next  string
	Dots  []PhotoDot
}

type PhotoDot struct {
	Href    string
	Current bool
}

type AboutPage struct {
	Layout
	Stats *model.BlogStats
}

type LoginPage struct {
	Layout
	Handle string
	Error  string
}

// AccessDeniedPage is shown for admin routes. Unauthenticated selects the
// "please log in" variant.
type AccessDeniedPage struct {
	Layout
	Unauthenticated bool
}

type AdminPostsPage struct {
	Layout
	Posts   []model.BlogPost
	Message string
}

// PostForm is the create/edit form of a post. ID is zero for a new post.
type PostForm struct {
	Layout
	ID               model.ID
	Title            string
	Body             string
	Category         model.Category
	FeaturedImageURL string
	Images           []ImageView
	Error            string
}

type AdminPortfolioPage struct {
	Layout
	Items   []model.PortfolioItem
	Message string
}

// PortfolioForm is the create/edit form of a portfolio item. ImageURLs holds
// one URL per line.
type PortfolioForm struct {
	Layout
	ID          model.ID
	Title       string
	Description string
	ImageURLs   string
	Location    string
	Images      []ImageView
	Error       string
}

// ImageView is an uploaded image as listed in the admin library.
type ImageView struct {
	Filename   string
	URL        string
	Width      int
	Height     int
	Size       int
	UploadedAt time.Time
}

type AdminImagesPage struct {
	Layout
	Images  []ImageView
	Message string
}

type ErrorPage struct {
	Layout
	Code    int
	Message string
}
