package model

import "fmt"

// Category classifies a blog post.
type Category string

const (
	PersonalStory       Category = "personalStory"
	Interview           Category = "interview"
	ClinicalObservation Category = "clinicalObservation"
)

var categoryLabels = map[Category]string{
	PersonalStory:       "Personal Story",
	Interview:           "Interview",
	ClinicalObservation: "Clinical Observation",
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{PersonalStory, Interview, ClinicalObservation}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory converts the wire form of a category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Role is the caller's role as decided by the remote system.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// ParseRole converts the wire form of a role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
