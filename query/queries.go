package query

import (
	"context"
	"sort"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/model"
)

func read[T any](ctx context.Context, c *Client, key Key, fetch func(context.Context, actor.Actor) (T, error)) (Result[T], error) {
	e, status, err := c.get(ctx, key, func(ctx context.Context, a actor.Actor) (any, error) {
		return fetch(ctx, a)
	})
	return resultOf[T](e, status), err
}

// sortNewestFirst orders posts by PublishedDate descending, keeping the
// remote order among equal dates.
func sortNewestFirst(posts []model.BlogPost) []model.BlogPost {
	out := make([]model.BlogPost, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedDate > out[j].PublishedDate
	})
	return out
}

// AllPosts returns every post, newest first.
func (c *Client) AllPosts(ctx context.Context) (Result[[]model.BlogPost], error) {
	return read(ctx, c, AllPosts(), func(ctx context.Context, a actor.Actor) ([]model.BlogPost, error) {
		posts, err := a.GetAllBlogPosts(ctx)
		if err != nil {
			return nil, err
		}
		return sortNewestFirst(posts), nil
	})
}

// Post returns one post. Data is nil when the post does not exist.
func (c *Client) Post(ctx context.Context, id model.ID) (Result[*model.BlogPost], error) {
	return read(ctx, c, PostByID(id), func(ctx context.Context, a actor.Actor) (*model.BlogPost, error) {
		return a.GetBlogPost(ctx, id)
	})
}

// PostsByCategory returns the posts of one category, newest first.
func (c *Client) PostsByCategory(ctx context.Context, cat model.Category) (Result[[]model.BlogPost], error) {
	return read(ctx, c, PostsByCategory(cat), func(ctx context.Context, a actor.Actor) ([]model.BlogPost, error) {
		posts, err := a.GetBlogPostsByCategory(ctx, cat)
		if err != nil {
			return nil, err
		}
		return sortNewestFirst(posts), nil
	})
}

// AllPortfolio returns every portfolio item in remote order.
func (c *Client) AllPortfolio(ctx context.Context) (Result[[]model.PortfolioItem], error) {
	return read(ctx, c, AllPortfolio(), func(ctx context.Context, a actor.Actor) ([]model.PortfolioItem, error) {
		return a.GetAllPortfolioItems(ctx)
	})
}

func (c *Client) PortfolioItem(ctx context.Context, id model.ID) (Result[*model.PortfolioItem], error) {
	return read(ctx, c, PortfolioByID(id), func(ctx context.Context, a actor.Actor) (*model.PortfolioItem, error) {
		return a.GetPortfolioItem(ctx, id)
	})
}

// CallerProfile returns the profile of the logged-in caller, nil if none was
// saved yet. Pending while anonymous.
func (c *Client) CallerProfile(ctx context.Context) (Result[*model.UserProfile], error) {
	return read(ctx, c, CallerProfile(), func(ctx context.Context, a actor.Actor) (*model.UserProfile, error) {
		return a.GetCallerUserProfile(ctx)
	})
}

// CallerRole returns the role of the logged-in caller. Pending while
// anonymous.
func (c *Client) CallerRole(ctx context.Context) (Result[model.Role], error) {
	return read(ctx, c, CallerRole(), func(ctx context.Context, a actor.Actor) (model.Role, error) {
		return a.GetCallerUserRole(ctx)
	})
}

func (c *Client) UserProfile(ctx context.Context, p model.Principal) (Result[*model.UserProfile], error) {
	return read(ctx, c, UserProfileOf(p), func(ctx context.Context, a actor.Actor) (*model.UserProfile, error) {
		return a.GetUserProfile(ctx, p)
	})
}

func (c *Client) Stats(ctx context.Context) (Result[model.BlogStats], error) {
	return read(ctx, c, Stats(), func(ctx context.Context, a actor.Actor) (model.BlogStats, error) {
		return a.GetBlogStats(ctx)
	})
}
