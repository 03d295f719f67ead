package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/auth"
	"github.com/eringen/fieldjournal/model"
)

func newTestClient(t *testing.T, f *fakeActor) (*Client, *auth.Session) {
	t.Helper()
	sess := auth.NewSession(nopProvider{}, zerolog.Nop())
	c := NewClient(actor.Static(f), sess)
	t.Cleanup(c.Close)
	return c, sess
}

func TestConcurrentReadsShareOneCall(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 1, Title: "a", PublishedDate: 10}}
	c, _ := newTestClient(t, f)
	release := f.block("GetAllBlogPosts")

	var wg sync.WaitGroup
	results := make([]Result[[]model.BlogPost], 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.AllPosts(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	require.Eventually(t, func() bool { return f.count("GetAllBlogPosts") == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, f.count("GetAllBlogPosts"))
	for _, res := range results {
		assert.Equal(t, StatusSuccess, res.Status)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "a", res.Data[0].Title)
	}
}

func TestFreshEntryServedFromCache(t *testing.T) {
	f := newFakeActor()
	c, _ := newTestClient(t, f)
	for i := 0; i < 3; i++ {
		_, err := c.AllPortfolio(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.count("GetAllPortfolioItems"))
}

func TestPostListsAreNewestFirst(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{
		{ID: 1, PublishedDate: 100, Category: model.Interview},
		{ID: 2, PublishedDate: 300, Category: model.Interview},
		{ID: 3, PublishedDate: 200, Category: model.Interview},
	}
	c, _ := newTestClient(t, f)

	dates := func(posts []model.BlogPost) []model.Time {
		var out []model.Time
		for _, p := range posts {
			out = append(out, p.PublishedDate)
		}
		return out
	}
	all, err := c.AllPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Time{300, 200, 100}, dates(all.Data))

	byCat, err := c.PostsByCategory(context.Background(), model.Interview)
	require.NoError(t, err)
	assert.Equal(t, []model.Time{300, 200, 100}, dates(byCat.Data))
}

func TestPortfolioKeepsRemoteOrder(t *testing.T) {
	f := newFakeActor()
	f.portfolio = []model.PortfolioItem{{ID: 5}, {ID: 2}, {ID: 9}}
	c, _ := newTestClient(t, f)
	res, err := c.AllPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, []model.ID{5, 2, 9}, []model.ID{res.Data[0].ID, res.Data[1].ID, res.Data[2].ID})
}

func TestCreatePostThenReadSeesIt(t *testing.T) {
	f := newFakeActor()
	f.nextID = 42
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	res, err := c.AllPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Data)

	id, err := c.CreatePost(ctx, model.PostInput{Title: "A", Body: "x", Category: model.PersonalStory})
	require.NoError(t, err)
	assert.Equal(t, model.ID(42), id)

	res, err = c.AllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	got := res.Data[0]
	assert.Equal(t, model.ID(42), got.ID)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, model.PersonalStory, got.Category)
	assert.Nil(t, got.FeaturedImageURL)
	assert.Equal(t, 2, f.count("GetAllBlogPosts"))
}

func TestFailedMutationInvalidatesNothing(t *testing.T) {
	f := newFakeActor()
	c, _ := newTestClient(t, f)
	ctx := context.Background()
	_, err := c.AllPosts(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	f.setFail(boom)
	_, err = c.CreatePost(ctx, model.PostInput{Title: "A", Body: "x", Category: model.Interview})
	assert.Same(t, boom, err)

	e, ok := c.Peek(AllPosts())
	require.True(t, ok)
	assert.Equal(t, StateFresh, e.State)
}

func TestFetchErrorKeepsPreviousValue(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 1, Title: "kept"}}
	c, _ := newTestClient(t, f)
	ctx := context.Background()
	_, err := c.AllPosts(ctx)
	require.NoError(t, err)

	boom := errors.New("network down")
	f.setFail(boom)
	c.Invalidate(AllPosts())
	res, err := c.AllPosts(ctx)
	assert.Same(t, boom, err)
	assert.Equal(t, StatusError, res.Status)
	require.True(t, res.HasData)
	assert.Equal(t, "kept", res.Data[0].Title)

	e, _ := c.Peek(AllPosts())
	assert.Equal(t, StateErrored, e.State)
	assert.Same(t, boom, e.Err)
}

func TestNotReadyIsPending(t *testing.T) {
	f := newFakeActor()
	src := actor.SourceFunc(func() (actor.Actor, bool) { return nil, false })
	c := NewClient(src, nil)
	defer c.Close()

	res, err := c.AllPosts(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.False(t, res.HasData)

	_, err = c.CreatePost(context.Background(), model.PostInput{Title: "A", Body: "x", Category: model.Interview})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Zero(t, f.count("GetAllBlogPosts"))
}

func TestCallerScopedPendingWhileAnonymous(t *testing.T) {
	f := newFakeActor()
	c, sess := newTestClient(t, f)
	ctx := context.Background()

	res, err := c.CallerRole(ctx)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Zero(t, f.count("GetCallerUserRole"))

	sess.Restore(auth.Identity{Principal: "ana", Token: "t"})
	f.setRole(model.RoleAdmin)
	res, err = c.CallerRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.Data)
}

func TestLogoutPurgesCallerScopedEntries(t *testing.T) {
	f := newFakeActor()
	f.role = model.RoleAdmin
	c, sess := newTestClient(t, f)
	ctx := context.Background()
	sess.Restore(auth.Identity{Principal: "ana", Token: "t"})

	_, err := c.CallerRole(ctx)
	require.NoError(t, err)
	_, err = c.CallerProfile(ctx)
	require.NoError(t, err)
	_, err = c.AllPosts(ctx)
	require.NoError(t, err)

	sess.Logout(ctx)
	_, ok := c.Peek(CallerRole())
	assert.False(t, ok)
	_, ok = c.Peek(CallerProfile())
	assert.False(t, ok)
	_, ok = c.Peek(AllPosts())
	assert.True(t, ok, "shared entries survive logout")

	f.setRole(model.RoleUser)
	sess.Restore(auth.Identity{Principal: "bob", Token: "u"})
	res, err := c.CallerRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, res.Data)
	assert.Equal(t, 2, f.count("GetCallerUserRole"))
}

func TestInFlightCallerFetchDiscardedAfterLogout(t *testing.T) {
	f := newFakeActor()
	f.role = model.RoleAdmin
	c, sess := newTestClient(t, f)
	sess.Restore(auth.Identity{Principal: "ana", Token: "t"})
	release := f.block("GetCallerUserRole")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.CallerRole(context.Background())
	}()
	require.Eventually(t, func() bool { return f.count("GetCallerUserRole") == 1 }, time.Second, time.Millisecond)
	sess.Logout(context.Background())
	release()
	<-done

	_, ok := c.Peek(CallerRole())
	assert.False(t, ok, "role of the previous identity must not be cached")
}

func TestUpdatePostLeavesCategoryListStale(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 1, Title: "old", Category: model.Interview, PublishedDate: 1}}
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.PostsByCategory(ctx, model.Interview)
	require.NoError(t, err)
	_, err = c.AllPosts(ctx)
	require.NoError(t, err)

	err = c.UpdatePost(ctx, 1, model.PostInput{Title: "new", Body: "b", Category: model.PersonalStory})
	require.NoError(t, err)

	e, _ := c.Peek(AllPosts())
	assert.Equal(t, StateStale, e.State)

	res, err := c.PostsByCategory(ctx, model.Interview)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "old", res.Data[0].Title)
	assert.Equal(t, 1, f.count("GetBlogPostsByCategory"))
}

func TestDeletePostInvalidatesItsCategory(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{
		{ID: 1, Category: model.Interview},
		{ID: 2, Category: model.PersonalStory},
	}
	c, _ := newTestClient(t, f)
	ctx := context.Background()
	_, err := c.Post(ctx, 1)
	require.NoError(t, err)
	_, err = c.PostsByCategory(ctx, model.Interview)
	require.NoError(t, err)
	_, err = c.PostsByCategory(ctx, model.PersonalStory)
	require.NoError(t, err)

	require.NoError(t, c.DeletePost(ctx, 1))

	e, _ := c.Peek(PostsByCategory(model.Interview))
	assert.Equal(t, StateStale, e.State)
	e, _ = c.Peek(PostsByCategory(model.PersonalStory))
	assert.Equal(t, StateFresh, e.State)
	e, _ = c.Peek(PostByID(1))
	assert.Equal(t, StateStale, e.State)
}

func TestDeleteUncachedPostInvalidatesEveryCategory(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 7, Category: model.Interview}}
	c, _ := newTestClient(t, f)
	ctx := context.Background()
	for _, cat := range model.Categories() {
		_, err := c.PostsByCategory(ctx, cat)
		require.NoError(t, err)
	}

	require.NoError(t, c.DeletePost(ctx, 7))
	for _, cat := range model.Categories() {
		e, _ := c.Peek(PostsByCategory(cat))
		assert.Equal(t, StateStale, e.State, cat)
	}
}

func TestInvalidationDuringFetchKeepsEntryStale(t *testing.T) {
	f := newFakeActor()
	c, _ := newTestClient(t, f)
	release := f.block("GetAllBlogPosts")

	done := make(chan Result[[]model.BlogPost], 1)
	go func() {
		res, _ := c.AllPosts(context.Background())
		done <- res
	}()
	require.Eventually(t, func() bool { return f.count("GetAllBlogPosts") == 1 }, time.Second, time.Millisecond)
	c.Invalidate(AllPosts())
	release()
	res := <-done

	assert.Equal(t, StatusSuccess, res.Status)
	e, _ := c.Peek(AllPosts())
	assert.True(t, e.HasValue)
	assert.Equal(t, StateStale, e.State)

	_, err := c.AllPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("GetAllBlogPosts"))
}

func TestCancelledCallerStillCachesResult(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 1}}
	c, _ := newTestClient(t, f)
	release := f.block("GetAllBlogPosts")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.AllPosts(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.count("GetAllBlogPosts") == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	release()

	require.Eventually(t, func() bool {
		e, _ := c.Peek(AllPosts())
		return e.State == StateFresh
	}, time.Second, time.Millisecond)
}

func TestSubscribedKeyRefetchedAfterMutation(t *testing.T) {
	f := newFakeActor()
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	notified := make(chan Key, 4)
	cancel := c.Subscribe(AllPortfolio(), func(k Key) { notified <- k })
	defer cancel()
	_, err := c.AllPortfolio(ctx)
	require.NoError(t, err)
	<-notified

	_, err = c.CreatePortfolioItem(ctx, model.PortfolioInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	select {
	case k := <-notified:
		assert.Equal(t, AllPortfolio(), k)
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
	e, _ := c.Peek(AllPortfolio())
	items, _ := e.Value.([]model.PortfolioItem)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, f.count("GetAllPortfolioItems"))
}

func TestStaleAfterExpiresEntries(t *testing.T) {
	f := newFakeActor()
	now := time.Unix(0, 0)
	c := NewClient(actor.Static(f), nil, WithStaleAfter(time.Minute), withClock(func() time.Time { return now }))
	defer c.Close()
	ctx := context.Background()

	_, err := c.Stats(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("GetBlogStats"))

	now = now.Add(time.Minute)
	_, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("GetBlogStats"))
}

func TestSaveProfileRefreshesCallerProfile(t *testing.T) {
	f := newFakeActor()
	c, sess := newTestClient(t, f)
	ctx := context.Background()
	sess.Restore(auth.Identity{Principal: "ana", Token: "t"})

	res, err := c.CallerProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Data)

	require.NoError(t, c.SaveProfile(ctx, model.UserProfile{Name: "Ana"}))
	res, err = c.CallerProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Ana", res.Data.Name)
}

func TestInvalidations(t *testing.T) {
	tests := []struct {
		change Change
		want   []Key
	}{
		{Change{Op: OpCreatePost, ID: 3, Category: model.Interview},
			[]Key{AllPosts(), PostsByCategory(model.Interview), Stats()}},
		{Change{Op: OpDeletePost, ID: 3, Category: model.Interview},
			[]Key{AllPosts(), PostsByCategory(model.Interview), PostByID(3), Stats()}},
		{Change{Op: OpDeletePost, ID: 3},
			[]Key{AllPosts(), anyCategory, PostByID(3), Stats()}},
		{Change{Op: OpUpdatePost, ID: 3, Category: model.Interview},
			[]Key{AllPosts(), PostByID(3)}},
		{Change{Op: OpCreatePortfolio, ID: 4}, []Key{AllPortfolio(), Stats()}},
		{Change{Op: OpDeletePortfolio, ID: 4}, []Key{AllPortfolio(), PortfolioByID(4), Stats()}},
		{Change{Op: OpUpdatePortfolio, ID: 4}, []Key{AllPortfolio(), PortfolioByID(4)}},
		{Change{Op: OpSaveProfile}, []Key{CallerProfile()}},
		{Change{Op: OpAssignRole}, []Key{CallerRole()}},
	}
	for _, tt := range tests {
		t.Run(tt.change.Op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Invalidations(tt.change))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "posts-all", AllPosts().String())
	assert.Equal(t, "post-by-id:7", PostByID(7).String())
	assert.Equal(t, "posts-by-category:interview", PostsByCategory(model.Interview).String())
	assert.Equal(t, "posts-by-category:*", anyCategory.String())
	assert.True(t, CallerRole().CallerScoped())
	assert.False(t, Stats().CallerScoped())
}

func TestIdentityChangeDoesNotSplitPublicFlight(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{{ID: 1, Title: "a", PublishedDate: 10}}
	c, sess := newTestClient(t, f)
	release := f.block("GetAllBlogPosts")

	var wg sync.WaitGroup
	read := func() {
		defer wg.Done()
		res, err := c.AllPosts(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)
	}
	wg.Add(1)
	go read()
	require.Eventually(t, func() bool { return f.count("GetAllBlogPosts") == 1 }, time.Second, time.Millisecond)

	sess.Restore(auth.Identity{Principal: "ana", Token: "t"})
	wg.Add(1)
	go read()
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, f.count("GetAllBlogPosts"))
}

func TestFilterByCategory(t *testing.T) {
	posts := []model.BlogPost{
		{ID: 1, Category: model.Interview},
		{ID: 2, Category: model.PersonalStory},
		{ID: 3, Category: model.Interview},
		{ID: 4, Category: model.ClinicalObservation},
		{ID: 5, Category: model.Interview},
	}
	cat := func(c model.Category) *model.Category { return &c }
	ids := func(ps []model.BlogPost) []model.ID {
		out := []model.ID{}
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name string
		in   []model.BlogPost
		sel  *model.Category
		want []model.ID
	}{
		{"nil selection", posts, nil, []model.ID{1, 2, 3, 4, 5}},
		{"interview keeps order", posts, cat(model.Interview), []model.ID{1, 3, 5}},
		{"single match", posts, cat(model.PersonalStory), []model.ID{2}},
		{"no posts", nil, cat(model.Interview), []model.ID{}},
		{"no match", posts[:2], cat(model.ClinicalObservation), []model.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByCategory(tt.in, tt.sel)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, ids(got), ids(FilterByCategory(got, tt.sel)), "filtering twice")
			for _, p := range got {
				if tt.sel != nil {
					assert.Equal(t, *tt.sel, p.Category)
				}
			}
		})
	}

	assert.Equal(t, posts, FilterByCategory(posts, nil))
}

func TestCategoryViewFollowsPostsAll(t *testing.T) {
	f := newFakeActor()
	f.posts = []model.BlogPost{
		{ID: 1, Category: model.Interview, PublishedDate: 10},
		{ID: 2, Category: model.PersonalStory, PublishedDate: 20},
	}
	f.nextID = 3
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	v, err := NewCategoryView(ctx, c)
	require.NoError(t, err)
	defer v.Close()
	require.Equal(t, 1, f.count("GetAllBlogPosts"))

	interview := model.Interview
	story := model.PersonalStory
	for _, sel := range []*model.Category{&interview, &story, nil, &interview} {
		posts, loaded := v.Posts(sel)
		require.True(t, loaded)
		if sel == nil {
			assert.Len(t, posts, 2)
			continue
		}
		for _, p := range posts {
			assert.Equal(t, *sel, p.Category)
		}
	}
	all, _ := v.Posts(nil)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, f.count("GetAllBlogPosts"), "changing the filter does not read remotely")
	assert.Equal(t, map[model.Category]int{model.Interview: 1, model.PersonalStory: 1}, v.Counts())

	before := v.Version()
	_, err = c.CreatePost(ctx, model.PostInput{Title: "new", Body: "b", Category: model.Interview})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return v.Version() > before }, time.Second, time.Millisecond)

	posts, _ := v.Posts(&interview)
	require.Len(t, posts, 2)
	assert.Equal(t, model.ID(3), posts[0].ID, "newest first")
	assert.Equal(t, 2, f.count("GetAllBlogPosts"))
}
