package query

import (
	"context"
	"sync"

	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/model"
)

// fakeActor is an in-memory actor that counts calls and can hold reads
// until released.
type fakeActor struct {
	mu        sync.Mutex
	posts     []model.BlogPost
	portfolio []model.PortfolioItem
	profile   *model.UserProfile
	role      model.Role
	nextID    model.ID
	clock     model.Time
	calls     map[string]int
	fail      error
	hold      map[string]chan struct{}
}

func newFakeActor() *fakeActor {
	return &fakeActor{
		role:   model.RoleGuest,
		nextID: 1,
		clock:  1000,
		calls:  make(map[string]int),
		hold:   make(map[string]chan struct{}),
	}
}

// block makes calls to method wait until the returned func is called.
func (f *fakeActor) block(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[method] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.hold, method)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *fakeActor) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	ch := f.hold[method]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *fakeActor) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeActor) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeActor) setRole(r model.Role) {
	f.mu.Lock()
	f.role = r
	f.mu.Unlock()
}

func (f *fakeActor) GetAllBlogPosts(ctx context.Context) ([]model.BlogPost, error) {
	if err := f.enter("GetAllBlogPosts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BlogPost(nil), f.posts...), nil
}

func (f *fakeActor) GetBlogPost(ctx context.Context, id model.ID) (*model.BlogPost, error) {
	if err := f.enter("GetBlogPost"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeActor) GetBlogPostsByCategory(ctx context.Context, c model.Category) ([]model.BlogPost, error) {
	if err := f.enter("GetBlogPostsByCategory"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BlogPost
	for _, p := range f.posts {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeActor) CreateBlogPost(ctx context.Context, in model.PostInput) (model.ID, error) {
	if err := f.enter("CreateBlogPost"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.clock += 1000
	f.posts = append(f.posts, model.BlogPost{
		ID: id, Title: in.Title, Body: in.Body, Category: in.Category,
		FeaturedImageURL: in.FeaturedImageURL, PublishedDate: f.clock,
	})
	return id, nil
}

func (f *fakeActor) UpdateBlogPost(ctx context.Context, id model.ID, in model.PostInput) error {
	if err := f.enter("UpdateBlogPost"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts {
		if p.ID == id {
			f.posts[i].Title, f.posts[i].Body, f.posts[i].Category = in.Title, in.Body, in.Category
			f.posts[i].FeaturedImageURL = in.FeaturedImageURL
		}
	}
	return nil
}

func (f *fakeActor) DeleteBlogPost(ctx context.Context, id model.ID) error {
	if err := f.enter("DeleteBlogPost"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.posts[:0]
	for _, p := range f.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.posts = kept
	return nil
}

func (f *fakeActor) GetAllPortfolioItems(ctx context.Context) ([]model.PortfolioItem, error) {
	if err := f.enter("GetAllPortfolioItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PortfolioItem(nil), f.portfolio...), nil
}

func (f *fakeActor) GetPortfolioItem(ctx context.Context, id model.ID) (*model.PortfolioItem, error) {
	if err := f.enter("GetPortfolioItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.portfolio {
		if it.ID == id {
			it := it
			return &it, nil
		}
	}
	return nil, nil
}

func (f *fakeActor) CreatePortfolioItem(ctx context.Context, in model.PortfolioInput) (model.ID, error) {
	if err := f.enter("CreatePortfolioItem"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.portfolio = append(f.portfolio, model.PortfolioItem{
		ID: id, Title: in.Title, Description: in.Description, ImageURLs: in.ImageURLs, Location: in.Location,
	})
	return id, nil
}

func (f *fakeActor) UpdatePortfolioItem(ctx context.Context, id model.ID, in model.PortfolioInput) error {
	return f.enter("UpdatePortfolioItem")
}

func (f *fakeActor) DeletePortfolioItem(ctx context.Context, id model.ID) error {
	return f.enter("DeletePortfolioItem")
}

func (f *fakeActor) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	if err := f.enter("GetCallerUserProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeActor) SaveCallerUserProfile(ctx context.Context, p model.UserProfile) error {
	if err := f.enter("SaveCallerUserProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	f.profile = &p
	f.mu.Unlock()
	return nil
}

func (f *fakeActor) GetUserProfile(ctx context.Context, p model.Principal) (*model.UserProfile, error) {
	return nil, f.enter("GetUserProfile")
}

func (f *fakeActor) GetCallerUserRole(ctx context.Context) (model.Role, error) {
	if err := f.enter("GetCallerUserRole"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.role, nil
}

func (f *fakeActor) IsCallerAdmin(ctx context.Context) (bool, error) {
	r, err := f.GetCallerUserRole(ctx)
	return r == model.RoleAdmin, err
}

func (f *fakeActor) AssignCallerUserRole(ctx context.Context, p model.Principal, r model.Role) error {
	return f.enter("AssignCallerUserRole")
}

func (f *fakeActor) GetBlogStats(ctx context.Context) (model.BlogStats, error) {
	if err := f.enter("GetBlogStats"); err != nil {
		return model.BlogStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.BlogStats{TotalPosts: uint64(len(f.posts)), TotalPortfolioItems: uint64(len(f.portfolio))}, nil
}

type nopProvider struct{}

func (nopProvider) Authenticate(ctx context.Context, c auth.Credentials) (auth.Identity, error) {
	return auth.Identity{Principal: model.Principal(c.Handle), Token: "t-" + c.Handle}, nil
}

func (nopProvider) Revoke(ctx context.Context, id auth.Identity) error { return nil }
