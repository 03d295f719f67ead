package query

import (
	"context"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/model"
)

// Op names a mutation.
type Op int

const (
	OpCreatePost Op = iota
	OpUpdatePost
	OpDeletePost
	OpCreatePortfolio
	OpUpdatePortfolio
	OpDeletePortfolio
	OpSaveProfile
	OpAssignRole
)

var opNames = [...]string{
	OpCreatePost:      "create-post",
	OpUpdatePost:      "update-post",
	OpDeletePost:      "delete-post",
	OpCreatePortfolio: "create-portfolio",
	OpUpdatePortfolio: "update-portfolio",
	OpDeletePortfolio: "delete-portfolio",
	OpSaveProfile:     "save-profile",
	OpAssignRole:      "assign-role",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Change describes a successful mutation. Category is the category of the
// affected post when known; empty means unknown.
type Change struct {
	Op       Op
	ID       model.ID
	Category model.Category
}

// Invalidations returns the keys a change makes stale.
//
// Updating a post does not touch the per-category lists, even when the
// category changed. Those lists stay stale until their next refetch.
func Invalidations(ch Change) []Key {
	switch ch.Op {
	case OpCreatePost:
		return []Key{AllPosts(), PostsByCategory(ch.Category), Stats()}
	case OpDeletePost:
		cat := anyCategory
		if ch.Category != "" {
			cat = PostsByCategory(ch.Category)
		}
		return []Key{AllPosts(), cat, PostByID(ch.ID), Stats()}
	case OpUpdatePost:
		return []Key{AllPosts(), PostByID(ch.ID)}
	case OpCreatePortfolio:
		return []Key{AllPortfolio(), Stats()}
	case OpDeletePortfolio:
		return []Key{AllPortfolio(), PortfolioByID(ch.ID), Stats()}
	case OpUpdatePortfolio:
		return []Key{AllPortfolio(), PortfolioByID(ch.ID)}
	case OpSaveProfile:
		return []Key{CallerProfile()}
	case OpAssignRole:
		return []Key{CallerRole()}
	}
	return nil
}

// mutate runs do against the actor and, on success, applies the
// invalidations for the change it returns before returning.
func (c *Client) mutate(ctx context.Context, op Op, do func(actor.Actor) (Change, error)) error {
	a, ok := c.src.Actor()
	if !ok {
		mutationsTotal.WithLabelValues(op.String(), "not_ready").Inc()
		return ErrNotReady
	}
	ch, err := do(a)
	if err != nil {
		mutationsTotal.WithLabelValues(op.String(), "error").Inc()
		c.log.Debug().Err(err).Str("op", op.String()).Msg("mutation failed")
		return err
	}
	ch.Op = op
	c.Invalidate(Invalidations(ch)...)
	mutationsTotal.WithLabelValues(op.String(), "ok").Inc()
	return nil
}

// CreatePost creates a post and returns its id.
func (c *Client) CreatePost(ctx context.Context, in model.PostInput) (model.ID, error) {
	var id model.ID
	err := c.mutate(ctx, OpCreatePost, func(a actor.Actor) (Change, error) {
		var err error
		id, err = a.CreateBlogPost(ctx, in)
		return Change{ID: id, Category: in.Category}, err
	})
	return id, err
}

func (c *Client) UpdatePost(ctx context.Context, id model.ID, in model.PostInput) error {
	return c.mutate(ctx, OpUpdatePost, func(a actor.Actor) (Change, error) {
		return Change{ID: id, Category: in.Category}, a.UpdateBlogPost(ctx, id, in)
	})
}

// DeletePost deletes a post. The category list invalidated is the one the
// cache last saw the post in; if the post was never cached every category
// list is invalidated.
func (c *Client) DeletePost(ctx context.Context, id model.ID) error {
	cat := c.cachedCategory(id)
	return c.mutate(ctx, OpDeletePost, func(a actor.Actor) (Change, error) {
		return Change{ID: id, Category: cat}, a.DeleteBlogPost(ctx, id)
	})
}

func (c *Client) cachedCategory(id model.ID) model.Category {
	if e, ok := c.Peek(PostByID(id)); ok && e.HasValue {
		if p, _ := e.Value.(*model.BlogPost); p != nil {
			return p.Category
		}
	}
	if e, ok := c.Peek(AllPosts()); ok && e.HasValue {
		posts, _ := e.Value.([]model.BlogPost)
		for _, p := range posts {
			if p.ID == id {
				return p.Category
			}
		}
	}
	return ""
}

func (c *Client) CreatePortfolioItem(ctx context.Context, in model.PortfolioInput) (model.ID, error) {
	var id model.ID
	err := c.mutate(ctx, OpCreatePortfolio, func(a actor.Actor) (Change, error) {
		var err error
		id, err = a.CreatePortfolioItem(ctx, in)
		return Change{ID: id}, err
	})
	return id, err
}

func (c *Client) UpdatePortfolioItem(ctx context.Context, id model.ID, in model.PortfolioInput) error {
	return c.mutate(ctx, OpUpdatePortfolio, func(a actor.Actor) (Change, error) {
		return Change{ID: id}, a.UpdatePortfolioItem(ctx, id, in)
	})
}

func (c *Client) DeletePortfolioItem(ctx context.Context, id model.ID) error {
	return c.mutate(ctx, OpDeletePortfolio, func(a actor.Actor) (Change, error) {
		return Change{ID: id}, a.DeletePortfolioItem(ctx, id)
	})
}

// SaveProfile stores the caller's profile.
func (c *Client) SaveProfile(ctx context.Context, p model.UserProfile) error {
	return c.mutate(ctx, OpSaveProfile, func(a actor.Actor) (Change, error) {
		return Change{}, a.SaveCallerUserProfile(ctx, p)
	})
}

// AssignRole assigns role to principal. Only the caller's own role entry is
// invalidated.
func (c *Client) AssignRole(ctx context.Context, p model.Principal, role model.Role) error {
	return c.mutate(ctx, OpAssignRole, func(a actor.Actor) (Change, error) {
		return Change{}, a.AssignCallerUserRole(ctx, p, role)
	})
}
