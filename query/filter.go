package query

import (
	"context"
	"sync"

	"github.com/eringen/fieldjournal/model"
)

// FilterByCategory returns the posts of category cat in their input order.
// A nil cat selects every post and returns posts unchanged.
func FilterByCategory(posts []model.BlogPost, cat *model.Category) []model.BlogPost {
	if cat == nil {
		return posts
	}
	out := make([]model.BlogPost, 0, len(posts))
	for _, p := range posts {
		if p.Category == *cat {
			out = append(out, p)
		}
	}
	return out
}

// CategoryView projects the cached posts-all list by category. It follows
// the posts-all entry and never calls the actor by itself.
type CategoryView struct {
	c      *Client
	cancel func()

	mu      sync.RWMutex
	all     []model.BlogPost
	loaded  bool
	version uint64
}

// NewCategoryView subscribes to posts-all on c and loads it once.
func NewCategoryView(ctx context.Context, c *Client) (*CategoryView, error) {
	v := &CategoryView{c: c}
	v.cancel = c.Subscribe(AllPosts(), func(Key) { v.reload() })
	res, err := c.AllPosts(ctx)
	if res.HasData {
		v.set(res.Data)
	}
	return v, err
}

func (v *CategoryView) reload() {
	e, ok := v.c.Peek(AllPosts())
	if !ok || !e.HasValue {
		return
	}
	posts, _ := e.Value.([]model.BlogPost)
	v.set(posts)
}

func (v *CategoryView) set(posts []model.BlogPost) {
	v.mu.Lock()
	v.all = posts
	v.loaded = true
	v.version++
	v.mu.Unlock()
}

// Posts returns the posts of the selected category, or all posts for a nil
// selection. The second result is false until posts-all was loaded once.
func (v *CategoryView) Posts(sel *model.Category) ([]model.BlogPost, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return FilterByCategory(v.all, sel), v.loaded
}

// Counts returns the number of posts per category.
func (v *CategoryView) Counts() map[model.Category]int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[model.Category]int, len(model.Categories()))
	for _, p := range v.all {
		out[p.Category]++
	}
	return out
}

// Version increases every time the projection input changes.
func (v *CategoryView) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Close stops following posts-all.
func (v *CategoryView) Close() { v.cancel() }
