// Package backend is a reference implementation of the journal's remote
// actor: a SQLite-backed service with role checks, served over the RPC
// protocol the actor package speaks.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/model"
)

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a mutation targets a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrBadCredentials is returned for a wrong password.
	ErrBadCredentials = errors.New("invalid credentials")
)

// Service applies the journal's access rules on top of a Store.
type Service struct {
	store *Store
	log   zerolog.Logger
	now   func() model.Time
}

// NewService returns a Service over store.
func NewService(store *Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: model.Now}
}

// Login authenticates handle. Unknown handles are registered with password;
// the first registered account becomes admin.
func (s *Service) Login(ctx context.Context, handle, password string) (model.Principal, string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return "", "", ErrBadCredentials
	}
	p, hash, ok, err := s.store.Account(ctx, handle)
	if err != nil {
		return "", "", err
	}
	if ok {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return "", "", ErrBadCredentials
		}
	} else {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", "", fmt.Errorf("hash password: %w", err)
		}
		p = model.Principal(uuid.NewString())
		role, err := s.store.CreateAccount(ctx, p, handle, string(h), s.now())
		if err != nil {
			return "", "", fmt.Errorf("create account: %w", err)
		}
		s.log.Info().Str("principal", string(p)).Str("handle", handle).Str("role", string(role)).Msg("account registered")
	}
	token := uuid.NewString()
	if err := s.store.IssueToken(ctx, token, p, s.now()); err != nil {
		return "", "", fmt.Errorf("issue token: %w", err)
	}
	return p, token, nil
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.RevokeToken(ctx, token)
}

// Resolve maps a bearer token to its principal. An empty or unknown token
// resolves to the anonymous caller.
func (s *Service) Resolve(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return "", nil
	}
	p, ok, err := s.store.Principal(ctx, token)
	if err != nil || !ok {
		return "", err
	}
	return p, nil
}

// RoleOf returns the role of p. The anonymous caller is a guest.
func (s *Service) RoleOf(ctx context.Context, p model.Principal) (model.Role, error) {
	if p == "" {
		return model.RoleGuest, nil
	}
	r, ok, err := s.store.Role(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return model.RoleUser, nil
	}
	return r, nil
}

func (s *Service) requireAdmin(ctx context.Context, p model.Principal) error {
	r, err := s.RoleOf(ctx, p)
	if err != nil {
		return err
	}
	if r != model.RoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

func requireUser(p model.Principal) error {
	if p == "" {
		return ErrUnauthorized
	}
	return nil
}

func notFound(found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// As returns an in-process actor acting as caller p ("" for anonymous).
func (s *Service) As(p model.Principal) actor.Actor {
	return &caller{s: s, p: p}
}

type caller struct {
	s *Service
	p model.Principal
}

var _ actor.Actor = (*caller)(nil)

func (c *caller) GetAllBlogPosts(ctx context.Context) ([]model.BlogPost, error) {
	return c.s.store.ListPosts(ctx)
}

func (c *caller) GetBlogPost(ctx context.Context, id model.ID) (*model.BlogPost, error) {
	return c.s.store.GetPost(ctx, id)
}

func (c *caller) GetBlogPostsByCategory(ctx context.Context, cat model.Category) ([]model.BlogPost, error) {
	return c.s.store.ListPostsByCategory(ctx, cat)
}

func (c *caller) CreateBlogPost(ctx context.Context, in model.PostInput) (model.ID, error) {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return 0, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.s.store.InsertPost(ctx, in, c.s.now())
}

func (c *caller) UpdateBlogPost(ctx context.Context, id model.ID, in model.PostInput) error {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	return notFound(c.s.store.UpdatePost(ctx, id, in, c.s.now()))
}

func (c *caller) DeleteBlogPost(ctx context.Context, id model.ID) error {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return err
	}
	return notFound(c.s.store.DeletePost(ctx, id, c.s.now()))
}

func (c *caller) GetAllPortfolioItems(ctx context.Context) ([]model.PortfolioItem, error) {
	return c.s.store.ListPortfolio(ctx)
}

func (c *caller) GetPortfolioItem(ctx context.Context, id model.ID) (*model.PortfolioItem, error) {
	return c.s.store.GetPortfolio(ctx, id)
}

func (c *caller) CreatePortfolioItem(ctx context.Context, in model.PortfolioInput) (model.ID, error) {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return 0, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return c.s.store.InsertPortfolio(ctx, in, c.s.now())
}

func (c *caller) UpdatePortfolioItem(ctx context.Context, id model.ID, in model.PortfolioInput) error {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	return notFound(c.s.store.UpdatePortfolio(ctx, id, in, c.s.now()))
}

func (c *caller) DeletePortfolioItem(ctx context.Context, id model.ID) error {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return err
	}
	return notFound(c.s.store.DeletePortfolio(ctx, id, c.s.now()))
}

func (c *caller) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	if err := requireUser(c.p); err != nil {
		return nil, err
	}
	return c.s.store.Profile(ctx, c.p)
}

func (c *caller) SaveCallerUserProfile(ctx context.Context, prof model.UserProfile) error {
	if err := requireUser(c.p); err != nil {
		return err
	}
	prof.Name = strings.TrimSpace(prof.Name)
	if prof.Name == "" {
		return &model.ValidationError{Field: "name", Message: "Name is required"}
	}
	return c.s.store.SaveProfile(ctx, c.p, prof)
}

func (c *caller) GetUserProfile(ctx context.Context, p model.Principal) (*model.UserProfile, error) {
	if p != c.p {
		if err := c.s.requireAdmin(ctx, c.p); err != nil {
			return nil, err
		}
	}
	return c.s.store.Profile(ctx, p)
}

func (c *caller) GetCallerUserRole(ctx context.Context) (model.Role, error) {
	return c.s.RoleOf(ctx, c.p)
}

func (c *caller) IsCallerAdmin(ctx context.Context) (bool, error) {
	r, err := c.s.RoleOf(ctx, c.p)
	return r == model.RoleAdmin, err
}

func (c *caller) AssignCallerUserRole(ctx context.Context, p model.Principal, role model.Role) error {
	if err := c.s.requireAdmin(ctx, c.p); err != nil {
		return err
	}
	if !role.Valid() {
		return &model.ValidationError{Field: "role", Message: "Unknown role"}
	}
	if p == "" {
		return &model.ValidationError{Field: "principal", Message: "Principal is required"}
	}
	return c.s.store.SetRole(ctx, p, role)
}

func (c *caller) GetBlogStats(ctx context.Context) (model.BlogStats, error) {
	return c.s.store.Stats(ctx)
}
