package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eringen/fieldjournal/actor"
)

// ErrInvalidCredentials is returned when the identity service rejects a login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// RemoteProvider authenticates against the backend identity endpoints.
type RemoteProvider struct {
	rc *resty.Client
}

// NewRemoteProvider returns a Provider for the identity service at baseURL.
func NewRemoteProvider(baseURL string, timeout time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteProvider{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

func (p *RemoteProvider) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	if strings.TrimSpace(creds.Handle) == "" || creds.Password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	var out actor.LoginResponse
	var eb actor.ErrorBody
	resp, err := p.rc.R().
		SetContext(ctx).
		SetBody(actor.LoginRequest{Handle: creds.Handle, Password: creds.Password}).
		SetResult(&out).
		SetError(&eb).
		Post(actor.PathLogin)
	if err != nil {
		return Identity{}, fmt.Errorf("login: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return Identity{}, ErrInvalidCredentials
	case resp.IsError():
		return Identity{}, fmt.Errorf("login: HTTP %d: %s", resp.StatusCode(), eb.Message)
	case out.Token == "" || out.Principal == "":
		return Identity{}, fmt.Errorf("login: empty identity in response")
	}
	return Identity{Principal: out.Principal, Token: out.Token}, nil
}

func (p *RemoteProvider) Revoke(ctx context.Context, id Identity) error {
	resp, err := p.rc.R().SetContext(ctx).SetAuthToken(id.Token).Post(actor.PathLogout)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("logout: HTTP %d", resp.StatusCode())
	}
	return nil
}
