package model

import (
	"errors"
	"strings"
)

// DefaultLocation is prefilled on new portfolio items.
const DefaultLocation = "Càng Long, Vietnam"

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a missing or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PostInput carries the mutable fields of a blog post.
type PostInput struct {
	Title            string
	Body             string
	Category         Category
	FeaturedImageURL *string
}

// Normalize trims text fields and maps a blank image URL to absent.
func (in PostInput) Normalize() PostInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.FeaturedImageURL != nil {
		in.FeaturedImageURL = StringPtr(strings.TrimSpace(*in.FeaturedImageURL))
	}
	return in
}

// Validate checks required fields.
func (in PostInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &ValidationError{Field: "title", Message: "Title is required"}
	case !in.Category.Valid():
		return &ValidationError{Field: "category", Message: "Category is required"}
	case strings.TrimSpace(in.Body) == "":
		return &ValidationError{Field: "body", Message: "Content is required"}
	}
	return nil
}

// PortfolioInput carries the mutable fields of a portfolio item.
type PortfolioInput struct {
	Title       string
	Description string
	ImageURLs   []string
	Location    string
}

// Normalize trims text fields and drops blank image URLs, keeping order.
func (in PortfolioInput) Normalize() PortfolioInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	urls := make([]string, 0, len(in.ImageURLs))
	for _, u := range in.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	in.ImageURLs = urls
	return in
}

// Validate checks required fields.
func (in PortfolioInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &ValidationError{Field: "title", Message: "Title is required"}
	case strings.TrimSpace(in.Description) == "":
		return &ValidationError{Field: "description", Message: "Description is required"}
	}
	return nil
}
