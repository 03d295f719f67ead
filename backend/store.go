package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/eringen/fieldjournal/model"
)

// Store persists the journal in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite database at path, ensures the data
// directory exists and creates missing tables.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; busy_timeout makes writers
	// wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    category TEXT NOT NULL,
    featured_image_url TEXT,
    published_date INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category);
CREATE TABLE IF NOT EXISTS portfolio_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    image_urls TEXT NOT NULL DEFAULT '[]',
    location TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS accounts (
    principal TEXT PRIMARY KEY,
    handle TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    principal TEXT NOT NULL REFERENCES accounts(principal) ON DELETE CASCADE,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS roles (
    principal TEXT PRIMARY KEY,
    role TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
    principal TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

const metaLastUpdated = "last_updated"

func touch(ctx context.Context, tx *sql.Tx, at model.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, metaLastUpdated, strconv.FormatInt(int64(at), 10))
	return err
}

// inTx runs fn in a transaction that is committed when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

const postColumns = `id, title, body, category, featured_image_url, published_date`

func scanPost(r scanner) (model.BlogPost, error) {
	var p model.BlogPost
	var img sql.NullString
	var cat string
	if err := r.Scan(&p.ID, &p.Title, &p.Body, &cat, &img, &p.PublishedDate); err != nil {
		return model.BlogPost{}, err
	}
	p.Category = model.Category(cat)
	if img.Valid {
		p.FeaturedImageURL = &img.String
	}
	return p, nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]model.BlogPost, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	posts := []model.BlogPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListPosts returns every post ordered by id.
func (s *Store) ListPosts(ctx context.Context) ([]model.BlogPost, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id`)
}

// ListPostsByCategory returns the posts of one category ordered by id.
func (s *Store) ListPostsByCategory(ctx context.Context, c model.Category) ([]model.BlogPost, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE category = ? ORDER BY id`, string(c))
}

// GetPost returns the post with id, or nil when there is none.
func (s *Store) GetPost(ctx context.Context, id model.ID) (*model.BlogPost, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPost stores a new post published at date and returns its id.
func (s *Store) InsertPost(ctx context.Context, in model.PostInput, date model.Time) (model.ID, error) {
	var id model.ID
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO posts (title, body, category, featured_image_url, published_date) VALUES (?, ?, ?, ?, ?)`,
			in.Title, in.Body, string(in.Category), nullString(in.FeaturedImageURL), int64(date))
		if err != nil {
			return err
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = model.ID(n)
		return touch(ctx, tx, date)
	})
	return id, err
}

// UpdatePost replaces the mutable fields of a post, keeping its published
// date. It reports false when the post does not exist.
func (s *Store) UpdatePost(ctx context.Context, id model.ID, in model.PostInput, at model.Time) (bool, error) {
	var found bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE posts SET title = ?, body = ?, category = ?, featured_image_url = ? WHERE id = ?`,
			in.Title, in.Body, string(in.Category), nullString(in.FeaturedImageURL), id)
		if err != nil {
			return err
		}
		found = affected(res)
		if !found {
			return nil
		}
		return touch(ctx, tx, at)
	})
	return found, err
}

// DeletePost removes a post. It reports false when the post did not exist.
func (s *Store) DeletePost(ctx context.Context, id model.ID, at model.Time) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM posts WHERE id = ?`, id, at)
}

func (s *Store) deleteRow(ctx context.Context, stmt string, id model.ID, at model.Time) (bool, error) {
	var found bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, id)
		if err != nil {
			return err
		}
		found = affected(res)
		if !found {
			return nil
		}
		return touch(ctx, tx, at)
	})
	return found, err
}

const portfolioColumns = `id, title, description, image_urls, location`

func scanPortfolio(r scanner) (model.PortfolioItem, error) {
	var it model.PortfolioItem
	var urls string
	if err := r.Scan(&it.ID, &it.Title, &it.Description, &urls, &it.Location); err != nil {
		return model.PortfolioItem{}, err
	}
	if err := json.Unmarshal([]byte(urls), &it.ImageURLs); err != nil {
		return model.PortfolioItem{}, fmt.Errorf("portfolio item %d: image urls: %w", it.ID, err)
	}
	if it.ImageURLs == nil {
		it.ImageURLs = []string{}
	}
	return it, nil
}

// ListPortfolio returns every portfolio item ordered by id.
func (s *Store) ListPortfolio(ctx context.Context) ([]model.PortfolioItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.PortfolioItem{}
	for rows.Next() {
		it, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetPortfolio returns the item with id, or nil when there is none.
func (s *Store) GetPortfolio(ctx context.Context, id model.ID) (*model.PortfolioItem, error) {
	it, err := scanPortfolio(s.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func encodeURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	return string(b), err
}

// InsertPortfolio stores a new portfolio item and returns its id.
func (s *Store) InsertPortfolio(ctx context.Context, in model.PortfolioInput, at model.Time) (model.ID, error) {
	urls, err := encodeURLs(in.ImageURLs)
	if err != nil {
		return 0, err
	}
	var id model.ID
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO portfolio_items (title, description, image_urls, location) VALUES (?, ?, ?, ?)`,
			in.Title, in.Description, urls, in.Location)
		if err != nil {
			return err
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = model.ID(n)
		return touch(ctx, tx, at)
	})
	return id, err
}

// UpdatePortfolio replaces a portfolio item. It reports false when the item
// does not exist.
func (s *Store) UpdatePortfolio(ctx context.Context, id model.ID, in model.PortfolioInput, at model.Time) (bool, error) {
	urls, err := encodeURLs(in.ImageURLs)
	if err != nil {
		return false, err
	}
	var found bool
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE portfolio_items SET title = ?, description = ?, image_urls = ?, location = ? WHERE id = ?`,
			in.Title, in.Description, urls, in.Location, id)
		if err != nil {
			return err
		}
		found = affected(res)
		if !found {
			return nil
		}
		return touch(ctx, tx, at)
	})
	return found, err
}

// DeletePortfolio removes a portfolio item. It reports false when the item
// did not exist.
func (s *Store) DeletePortfolio(ctx context.Context, id model.ID, at model.Time) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM portfolio_items WHERE id = ?`, id, at)
}

// Stats counts posts and portfolio items.
func (s *Store) Stats(ctx context.Context) (model.BlogStats, error) {
	var st model.BlogStats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM posts),
		(SELECT COUNT(*) FROM portfolio_items),
		COALESCE((SELECT CAST(value AS INTEGER) FROM meta WHERE key = ?), 0)`, metaLastUpdated).
		Scan(&st.TotalPosts, &st.TotalPortfolioItems, &st.LastUpdated)
	return st, err
}

// CreateAccount registers handle. The first account becomes admin, every
// later one user.
func (s *Store) CreateAccount(ctx context.Context, p model.Principal, handle, hash string, at model.Time) (model.Role, error) {
	role := model.RoleUser
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			role = model.RoleAdmin
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (principal, handle, password_hash, created_at) VALUES (?, ?, ?, ?)`,
			string(p), handle, hash, int64(at)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO roles (principal, role) VALUES (?, ?)
			ON CONFLICT(principal) DO UPDATE SET role = excluded.role`, string(p), string(role))
		return err
	})
	return role, err
}

// Account returns the principal and password hash registered for handle.
// ok is false when the handle is unknown.
func (s *Store) Account(ctx context.Context, handle string) (p model.Principal, hash string, ok bool, err error) {
	var principal string
	err = s.db.QueryRowContext(ctx, `SELECT principal, password_hash FROM accounts WHERE handle = ?`, handle).Scan(&principal, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return model.Principal(principal), hash, true, nil
}

// IssueToken records a bearer token for p.
func (s *Store) IssueToken(ctx context.Context, token string, p model.Principal, at model.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tokens (token, principal, created_at) VALUES (?, ?, ?)`, token, string(p), int64(at))
	return err
}

// Principal resolves a bearer token. ok is false for unknown tokens.
func (s *Store) Principal(ctx context.Context, token string) (model.Principal, bool, error) {
	var p string
	err := s.db.QueryRowContext(ctx, `SELECT principal FROM tokens WHERE token = ?`, token).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Principal(p), true, nil
}

// RevokeToken deletes a bearer token.
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token)
	return err
}

// Role returns the role assigned to p. ok is false when none is.
func (s *Store) Role(ctx context.Context, p model.Principal) (model.Role, bool, error) {
	var r string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM roles WHERE principal = ?`, string(p)).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Role(r), true, nil
}

// SetRole assigns role to p.
func (s *Store) SetRole(ctx context.Context, p model.Principal, role model.Role) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO roles (principal, role) VALUES (?, ?)
		ON CONFLICT(principal) DO UPDATE SET role = excluded.role`, string(p), string(role))
	return err
}

// Profile returns the profile of p, or nil when none was saved.
func (s *Store) Profile(ctx context.Context, p model.Principal) (*model.UserProfile, error) {
	var prof model.UserProfile
	err := s.db.QueryRowContext(ctx, `SELECT name FROM profiles WHERE principal = ?`, string(p)).Scan(&prof.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// SaveProfile upserts the profile of p.
func (s *Store) SaveProfile(ctx context.Context, p model.Principal, prof model.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (principal, name) VALUES (?, ?)
		ON CONFLICT(principal) DO UPDATE SET name = excluded.name`, string(p), prof.Name)
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
