// Package model holds the journal entities shared by the actor client, the
// query layer, the reference backend and the web views.
package model

import (
	"strconv"
	"time"
)

// ID identifies a blog post or portfolio item. IDs are assigned by the remote
// system and never reused.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses the decimal form produced by ID.String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Time is a timestamp in nanoseconds since the Unix epoch.
type Time int64

// Now returns the current time as a Time.
func Now() Time { return Time(time.Now().UnixNano()) }

// Millis converts the timestamp to milliseconds for date rendering.
func (t Time) Millis() int64 { return int64(t) / 1_000_000 }

// Std converts the timestamp to a time.Time in UTC.
func (t Time) Std() time.Time { return time.UnixMilli(t.Millis()).UTC() }

// Principal identifies an authenticated caller.
type Principal string

// BlogPost is a journal entry.
type BlogPost struct {
	ID               ID       `json:"id,string"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	PublishedDate    Time     `json:"publishedDate,string"`
	FeaturedImageURL *string  `json:"featuredImageUrl,omitempty"`
	Category         Category `json:"category"`
}

// PortfolioItem is a photo essay. The first image URL is the cover.
type PortfolioItem struct {
	ID          ID       `json:"id,string"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"imageUrls"`
	Location    string   `json:"location"`
}

// Cover returns the cover image URL, or "" when the item has no images.
func (p PortfolioItem) Cover() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// UserProfile is the profile an authenticated caller saves for themselves.
type UserProfile struct {
	Name string `json:"name"`
}

// BlogStats aggregates collection sizes and the time of the last write.
type BlogStats struct {
	TotalPosts          uint64 `json:"totalPosts,string"`
	TotalPortfolioItems uint64 `json:"totalPortfolioItems,string"`
	LastUpdated         Time   `json:"lastUpdated,string"`
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
