package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eringen/fieldjournal/markup"
	"github.com/eringen/fieldjournal/model"
)

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PostPath is the site-relative URL of a post.
func PostPath(id model.ID) string { return "/blog/" + id.String() + "/" }

// PortfolioPath is the site-relative URL of a photo essay.
func PortfolioPath(id model.ID) string { return "/portfolio/" + id.String() + "/" }

// PhotoPath links photo i of essay id. The cover has no query string.
func PhotoPath(id model.ID, i int) string {
	if i == 0 {
		return PortfolioPath(id)
	}
	return PortfolioPath(id) + "?photo=" + strconv.Itoa(i)
}

// NewPortfolioItemPage selects photo i of item, wrapping out-of-range
// indexes, and links its neighbours.
func NewPortfolioItemPage(l Layout, item model.PortfolioItem, i int) PortfolioItemPage {
	n := len(item.ImageURLs)
	i = WrapIndex(i, n)
	p := PortfolioItemPage{Layout: l, Item: item, Index: i}
	if n == 0 {
		return p
	}
	p.Photo = item.ImageURLs[i]
	if n > 1 {
		p.Prev = PhotoPath(item.ID, WrapIndex(i-1, n))
		p.Next = PhotoPath(item.ID, WrapIndex(i+1, n))
		for j := range item.ImageURLs {
			p.Dots = append(p.Dots, PhotoDot{Href: PhotoPath(item.ID, j), Current: j == i})
		}
	}
	return p
}

// WrapIndex maps i into [0, n), wrapping in both directions. It is 0 for an
// empty gallery.
func WrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// FormatDate renders a publication time as "January 2, 2006".
func FormatDate(t model.Time) string {
	if t == 0 {
		return ""
	}
	return t.Std().Format("January 2, 2006")
}

// ISODate renders t as YYYY-MM-DD.
func ISODate(t model.Time) string {
	return t.Std().Format("2006-01-02")
}

// Ago renders t relative to now ("3 days ago").
func Ago(t model.Time) string {
	if t == 0 {
		return ""
	}
	return humanize.Time(t.Std())
}

// AgoTime is Ago for a time.Time.
func AgoTime(t time.Time) string { return humanize.Time(t) }

// Bytes renders a byte count ("1.2 MB").
func Bytes(n int) string { return humanize.Bytes(uint64(n)) }

// ChipClass returns CSS classes for a category chip, with active variant.
func ChipClass(active bool) string {
	base := "chip"
	if active {
		base += " chip-active"
	}
	return base
}

// RelatedPosts returns up to limit other posts of the same category.
func RelatedPosts(current model.BlogPost, posts []model.BlogPost, limit int) []model.BlogPost {
	var related []model.BlogPost
	for _, p := range posts {
		if p.ID == current.ID || p.Category != current.Category {
			continue
		}
		related = append(related, p)
		if len(related) == limit {
			break
		}
	}
	return related
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return marshalLD(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post model.BlogPost) string {
	postURL := BuildURL(cfg.URL, "blog", post.ID.String())
	data := map[string]interface{}{
		"@context":       "https://schema.org",
		"@type":          "BlogPosting",
		"headline":       post.Title,
		"description":    markup.Excerpt(post.Body, 160),
		"datePublished":  ISODate(post.PublishedDate),
		"url":            postURL,
		"articleSection": post.Category.Label(),
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.FeaturedImageURL != nil {
		data["image"] = *post.FeaturedImageURL
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return marshalLD(data)
}

func marshalLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
