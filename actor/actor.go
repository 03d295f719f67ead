// Package actor is the client side of the journal's remote actor: the
// capability interface the query layer consumes, the RPC wire types, an
// HTTP implementation and a readiness provider.
package actor

import (
	"context"

	"github.com/eringen/fieldjournal/model"
)

// Actor is the remote capability. Absent entities are reported as nil
// pointers, not errors.
type Actor interface {
	GetAllBlogPosts(ctx context.Context) ([]model.BlogPost, error)
	GetBlogPost(ctx context.Context, id model.ID) (*model.BlogPost, error)
	GetBlogPostsByCategory(ctx context.Context, category model.Category) ([]model.BlogPost, error)
	CreateBlogPost(ctx context.Context, in model.PostInput) (model.ID, error)
	UpdateBlogPost(ctx context.Context, id model.ID, in model.PostInput) error
	DeleteBlogPost(ctx context.Context, id model.ID) error

	GetAllPortfolioItems(ctx context.Context) ([]model.PortfolioItem, error)
	GetPortfolioItem(ctx context.Context, id model.ID) (*model.PortfolioItem, error)
	CreatePortfolioItem(ctx context.Context, in model.PortfolioInput) (model.ID, error)
	UpdatePortfolioItem(ctx context.Context, id model.ID, in model.PortfolioInput) error
	DeletePortfolioItem(ctx context.Context, id model.ID) error

	GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error)
	SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error
	GetUserProfile(ctx context.Context, principal model.Principal) (*model.UserProfile, error)

	GetCallerUserRole(ctx context.Context) (model.Role, error)
	IsCallerAdmin(ctx context.Context) (bool, error)
	AssignCallerUserRole(ctx context.Context, principal model.Principal, role model.Role) error

	GetBlogStats(ctx context.Context) (model.BlogStats, error)
}

// Source hands out the actor capability once it is available. A false second
// result means the actor is not ready yet.
type Source interface {
	Actor() (Actor, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Actor, bool)

func (f SourceFunc) Actor() (Actor, bool) { return f() }

// Static returns a Source that is always ready with a.
func Static(a Actor) Source {
	return SourceFunc(func() (Actor, bool) { return a, true })
}

// TokenSource yields the bearer token of the current identity, or "" for an
// anonymous caller.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }
