package actor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/fieldjournal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": v})
}

func TestNew_EmptyBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
	if _, err := New("http://example.com", WithHTTPTimeout(0)); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestGetAllBlogPosts_Success(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rpc/getAllBlogPosts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeOK(w, []model.BlogPost{{ID: 1, Title: "A", Category: model.Interview, PublishedDate: 100}})
	})
	posts, err := c.GetAllBlogPosts(context.Background())
	if err != nil || len(posts) != 1 || posts[0].ID != 1 || posts[0].Category != model.Interview {
		t.Fatalf("GetAllBlogPosts unexpected: got=%+v err=%v", posts, err)
	}
}

func TestGetBlogPost_Absent(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var args IDArgs
		_ = json.NewDecoder(r.Body).Decode(&args)
		if args.ID != 42 {
			t.Errorf("id = %d, want 42", args.ID)
		}
		writeOK(w, nil)
	})
	post, err := c.GetBlogPost(context.Background(), 42)
	if err != nil || post != nil {
		t.Fatalf("expected absent post, got=%+v err=%v", post, err)
	}
}

func TestCreateBlogPost_SendsAbsentImageAsNull(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		if v, ok := raw["featuredImageUrl"]; !ok || v != nil {
			t.Errorf("featuredImageUrl should be null, body=%s", body)
		}
		writeOK(w, "17")
	})
	id, err := c.CreateBlogPost(context.Background(), model.PostInput{Title: "A", Body: "b", Category: model.PersonalStory})
	if err != nil || id != 17 {
		t.Fatalf("CreateBlogPost unexpected: id=%d err=%v", id, err)
	}
}

func TestCall_BearerToken(t *testing.T) {
	t.Parallel()
	var got atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		writeOK(w, "admin")
	})
	anon, err := c.GetCallerUserRole(context.Background())
	if err != nil || anon != model.RoleAdmin {
		t.Fatalf("role=%q err=%v", anon, err)
	}
	if h, _ := got.Load().(string); h != "" {
		t.Errorf("anonymous call sent Authorization %q", h)
	}
	as := c.As(TokenFunc(func() string { return "tok-1" }))
	if _, err := as.GetCallerUserRole(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h, _ := got.Load().(string); h != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", h)
	}
}

func TestCall_RemoteErrors(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rpc/deleteBlogPost":
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(ErrorBody{Error: "Forbidden", Code: 403, Message: "Only admins can delete posts"})
		case "/rpc/getBlogPost":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	err := c.DeleteBlogPost(context.Background(), 1)
	var re *RemoteError
	if !errors.As(err, &re) || re.StatusCode != 403 || re.Category != Irrecoverable {
		t.Fatalf("expected 403 irrecoverable RemoteError, got %v", err)
	}
	if re.Message != "Only admins can delete posts" || !IsUnauthorized(err) {
		t.Errorf("unexpected error details: %+v", re)
	}
	if _, err := c.GetBlogPost(context.Background(), 1); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := c.GetAllPortfolioItems(context.Background()); err == nil || IsIrrecoverable(err) {
		t.Errorf("expected recoverable 500, got %v", err)
	}
}

func TestCall_DecodeError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{bad json"))
	})
	if _, err := c.GetAllPortfolioItems(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCall_NetworkError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := New(url, WithHTTPTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetBlogStats(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) || re.StatusCode != 0 || re.Category != Recoverable {
		t.Fatalf("expected recoverable network error, got %v", err)
	}
}

func TestProvider_BecomesReady(t *testing.T) {
	t.Parallel()
	var healthy atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathHealth && healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	p := NewProvider(c, zerolog.Nop())
	p.initialInterval = 5 * time.Millisecond
	p.maxInterval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := p.Start(ctx)

	if _, ok := p.Actor(); ok {
		t.Fatal("actor should not be ready before the first health check passes")
	}
	if _, ok := p.For(TokenFunc(func() string { return "x" })).Actor(); ok {
		t.Fatal("bound source should not be ready either")
	}
	healthy.Store(true)
	<-done
	if !p.Ready() {
		t.Fatal("provider should be ready")
	}
	if a, ok := p.Actor(); !ok || a == nil {
		t.Fatal("expected actor after readiness")
	}
}
