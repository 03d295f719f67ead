package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/actor"
	"github.com/eringen/fieldjournal/logger"
	"github.com/eringen/fieldjournal/model"
)

// Server exposes a Service over HTTP.
type Server struct {
	Echo *echo.Echo
	svc  *Service
	log  zerolog.Logger
}

type handlerFunc func(c echo.Context, a actor.Actor) (any, error)

// NewServer wires the RPC and identity routes for svc.
func NewServer(svc *Service, log zerolog.Logger) *Server {
	s := &Server{Echo: echo.New(), svc: svc, log: log}
	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler
	e.Use(logger.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	e.GET(actor.PathHealth, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST(actor.PathLogin, s.login)
	e.POST(actor.PathLogout, s.logout)
	e.POST(actor.PathRPC+":method", s.rpc)
	return s
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("backend listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func bearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

func (s *Server) login(c echo.Context) error {
	var req actor.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, token, err := s.svc.Login(c.Request().Context(), req.Handle, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.JSON(http.StatusOK, actor.LoginResponse{Principal: p, Token: token})
}

func (s *Server) logout(c echo.Context) error {
	tok := bearer(c)
	if tok == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	if err := s.svc.Logout(c.Request().Context(), tok); err != nil {
		return pkgerrors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) rpc(c echo.Context) error {
	h, ok := methods[c.Param("method")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown method "+c.Param("method"))
	}
	p, err := s.svc.Resolve(c.Request().Context(), bearer(c))
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	out, err := h(c, s.svc.As(p))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, actor.Envelope[any]{OK: out})
}

// bindArgs decodes the request body into T.
func bindArgs[T any](c echo.Context) (T, error) {
	var args T
	if err := c.Bind(&args); err != nil {
		return args, &model.ValidationError{Field: "body", Message: "invalid arguments"}
	}
	return args, nil
}

// noResult adapts void methods; they answer {"ok":null}.
func noResult(err error) (any, error) { return nil, err }

// idResult sends new ids as decimal strings.
func idResult(id model.ID, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

var methods = map[string]handlerFunc{
	actor.MethodGetAllBlogPosts: func(c echo.Context, a actor.Actor) (any, error) {
		return a.GetAllBlogPosts(c.Request().Context())
	},
	actor.MethodGetBlogPost: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.IDArgs](c)
		if err != nil {
			return nil, err
		}
		return a.GetBlogPost(c.Request().Context(), args.ID)
	},
	actor.MethodGetBlogPostsByCategory: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.CategoryArgs](c)
		if err != nil {
			return nil, err
		}
		if !args.Category.Valid() {
			return nil, &model.ValidationError{Field: "category", Message: "unknown category"}
		}
		return a.GetBlogPostsByCategory(c.Request().Context(), args.Category)
	},
	actor.MethodCreateBlogPost: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.PostArgs](c)
		if err != nil {
			return nil, err
		}
		return idResult(a.CreateBlogPost(c.Request().Context(), args.PostInput()))
	},
	actor.MethodUpdateBlogPost: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.PostArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.UpdateBlogPost(c.Request().Context(), args.ID, args.PostInput()))
	},
	actor.MethodDeleteBlogPost: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.IDArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.DeleteBlogPost(c.Request().Context(), args.ID))
	},
	actor.MethodGetAllPortfolioItems: func(c echo.Context, a actor.Actor) (any, error) {
		return a.GetAllPortfolioItems(c.Request().Context())
	},
	actor.MethodGetPortfolioItem: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.IDArgs](c)
		if err != nil {
			return nil, err
		}
		return a.GetPortfolioItem(c.Request().Context(), args.ID)
	},
	actor.MethodCreatePortfolioItem: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.PortfolioArgs](c)
		if err != nil {
			return nil, err
		}
		return idResult(a.CreatePortfolioItem(c.Request().Context(), args.PortfolioInput()))
	},
	actor.MethodUpdatePortfolioItem: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.PortfolioArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.UpdatePortfolioItem(c.Request().Context(), args.ID, args.PortfolioInput()))
	},
	actor.MethodDeletePortfolioItem: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.IDArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.DeletePortfolioItem(c.Request().Context(), args.ID))
	},
	actor.MethodGetCallerUserProfile: func(c echo.Context, a actor.Actor) (any, error) {
		return a.GetCallerUserProfile(c.Request().Context())
	},
	actor.MethodSaveCallerUserProfile: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.ProfileArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.SaveCallerUserProfile(c.Request().Context(), args.Profile))
	},
	actor.MethodGetUserProfile: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.PrincipalArgs](c)
		if err != nil {
			return nil, err
		}
		return a.GetUserProfile(c.Request().Context(), args.Principal)
	},
	actor.MethodGetCallerUserRole: func(c echo.Context, a actor.Actor) (any, error) {
		return a.GetCallerUserRole(c.Request().Context())
	},
	actor.MethodIsCallerAdmin: func(c echo.Context, a actor.Actor) (any, error) {
		return a.IsCallerAdmin(c.Request().Context())
	},
	actor.MethodAssignCallerUserRole: func(c echo.Context, a actor.Actor) (any, error) {
		args, err := bindArgs[actor.AssignRoleArgs](c)
		if err != nil {
			return nil, err
		}
		return noResult(a.AssignCallerUserRole(c.Request().Context(), args.Principal, args.Role))
	},
	actor.MethodGetBlogStats: func(c echo.Context, a actor.Actor) (any, error) {
		return a.GetBlogStats(c.Request().Context())
	},
}

func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// httpErrorHandler answers every failure with the actor error envelope.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Stack().Err(err).Str("path", c.Request().URL.Path).Msg("rpc failed")
		msg = "internal error"
	}
	body := actor.ErrorBody{Error: http.StatusText(code), Code: code, Message: msg}
	if werr := c.JSON(code, body); werr != nil {
		s.log.Error().Err(werr).Msg("write error response")
	}
}
