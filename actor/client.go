package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eringen/fieldjournal/model"
)

// Client calls the remote actor over HTTP. It is safe for concurrent use.
type Client struct {
	rc     *resty.Client
	tokens TokenSource
}

var _ Actor = (*Client)(nil)

// New constructs a Client for the actor served at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("actor: baseURL cannot be empty")
	}
	c := &Client{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// As returns a Client that shares c's transport but authenticates with ts.
func (c *Client) As(ts TokenSource) *Client {
	return &Client{rc: c.rc, tokens: ts}
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// Ping checks that the actor is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.rc.R().SetContext(ctx).Get(PathHealth)
	if err != nil {
		return newNetworkError("ping", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return newHTTPError("ping", resp.StatusCode(), resp.Body())
	}
	return nil
}

// call posts args to /rpc/{method} and decodes the "ok" member into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, method string, args, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if args == nil {
		args = NoArgs{}
	}
	req := c.rc.R().SetContext(ctx).SetBody(args)
	if tok := c.token(); tok != "" {
		req.SetAuthToken(tok)
	}
	resp, err := req.Post(PathRPC + method)
	if err != nil {
		return newNetworkError(method, err)
	}
	if resp.IsError() {
		return newHTTPError(method, resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if len(env.OK) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.OK, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) GetAllBlogPosts(ctx context.Context) ([]model.BlogPost, error) {
	var posts []model.BlogPost
	if err := c.call(ctx, MethodGetAllBlogPosts, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetBlogPost(ctx context.Context, id model.ID) (*model.BlogPost, error) {
	var post *model.BlogPost
	if err := c.call(ctx, MethodGetBlogPost, IDArgs{ID: id}, &post); err != nil {
		return nil, err
	}
	return post, nil
}

func (c *Client) GetBlogPostsByCategory(ctx context.Context, category model.Category) ([]model.BlogPost, error) {
	var posts []model.BlogPost
	if err := c.call(ctx, MethodGetBlogPostsByCategory, CategoryArgs{Category: category}, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) CreateBlogPost(ctx context.Context, in model.PostInput) (model.ID, error) {
	var id idResult
	if err := c.call(ctx, MethodCreateBlogPost, postArgs(0, in), &id); err != nil {
		return 0, err
	}
	return model.ID(id), nil
}

func (c *Client) UpdateBlogPost(ctx context.Context, id model.ID, in model.PostInput) error {
	return c.call(ctx, MethodUpdateBlogPost, postArgs(id, in), nil)
}

func (c *Client) DeleteBlogPost(ctx context.Context, id model.ID) error {
	return c.call(ctx, MethodDeleteBlogPost, IDArgs{ID: id}, nil)
}

func (c *Client) GetAllPortfolioItems(ctx context.Context) ([]model.PortfolioItem, error) {
	var items []model.PortfolioItem
	if err := c.call(ctx, MethodGetAllPortfolioItems, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetPortfolioItem(ctx context.Context, id model.ID) (*model.PortfolioItem, error) {
	var item *model.PortfolioItem
	if err := c.call(ctx, MethodGetPortfolioItem, IDArgs{ID: id}, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) CreatePortfolioItem(ctx context.Context, in model.PortfolioInput) (model.ID, error) {
	var id idResult
	if err := c.call(ctx, MethodCreatePortfolioItem, portfolioArgs(0, in), &id); err != nil {
		return 0, err
	}
	return model.ID(id), nil
}

func (c *Client) UpdatePortfolioItem(ctx context.Context, id model.ID, in model.PortfolioInput) error {
	return c.call(ctx, MethodUpdatePortfolioItem, portfolioArgs(id, in), nil)
}

func (c *Client) DeletePortfolioItem(ctx context.Context, id model.ID) error {
	return c.call(ctx, MethodDeletePortfolioItem, IDArgs{ID: id}, nil)
}

func (c *Client) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	var p *model.UserProfile
	if err := c.call(ctx, MethodGetCallerUserProfile, nil, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error {
	return c.call(ctx, MethodSaveCallerUserProfile, ProfileArgs{Profile: profile}, nil)
}

func (c *Client) GetUserProfile(ctx context.Context, principal model.Principal) (*model.UserProfile, error) {
	var p *model.UserProfile
	if err := c.call(ctx, MethodGetUserProfile, PrincipalArgs{Principal: principal}, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) GetCallerUserRole(ctx context.Context) (model.Role, error) {
	var role model.Role
	if err := c.call(ctx, MethodGetCallerUserRole, nil, &role); err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", fmt.Errorf("%s: unexpected role %q", MethodGetCallerUserRole, role)
	}
	return role, nil
}

func (c *Client) IsCallerAdmin(ctx context.Context) (bool, error) {
	var ok bool
	if err := c.call(ctx, MethodIsCallerAdmin, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Client) AssignCallerUserRole(ctx context.Context, principal model.Principal, role model.Role) error {
	return c.call(ctx, MethodAssignCallerUserRole, AssignRoleArgs{Principal: principal, Role: role}, nil)
}

func (c *Client) GetBlogStats(ctx context.Context) (model.BlogStats, error) {
	var s model.BlogStats
	err := c.call(ctx, MethodGetBlogStats, nil, &s)
	return s, err
}

// idResult decodes new IDs, which the backend sends as decimal strings.
type idResult model.ID

func (r *idResult) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	id, err := model.ParseID(s)
	if err != nil {
		return err
	}
	*r = idResult(id)
	return nil
}
