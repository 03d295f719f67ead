// Package media stores images uploaded by the admin for use in posts and
// portfolio items. Uploads are normalized to bounded-width JPEGs.
package media

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "modernc.org/sqlite"
)

const (
	MaxWidth      = 1200
	JPEGQuality   = 80
	MaxUploadSize = 10 << 20
	uploadsSubdir = "uploads"
)

var (
	// ErrInvalidImage wraps decode failures of uploaded files.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidFilename is returned for names that are not a plain file
	// in the upload directory.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Image is the metadata of a stored upload.
type Image struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   time.Time
}

// Process decodes src, scales it down to MaxWidth if wider and encodes it as
// JPEG.
func Process(src io.Reader, originalName string) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > MaxWidth {
		newH := h * MaxWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, MaxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = MaxWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return Image{
		Filename:     slugifyFilename(originalName) + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

func slugifyFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(strings.TrimSpace(base))
	var b strings.Builder
	dash := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	if s := strings.TrimRight(b.String(), "-"); s != "" {
		return s
	}
	return "image"
}

// Library keeps uploaded files under <staticDir>/uploads and their metadata
// in SQLite.
type Library struct {
	dir       string
	urlPrefix string
	db        *sql.DB
	log       zerolog.Logger
}

// Open opens the metadata database at dbPath and stores files under
// staticDir/uploads, served at urlPrefix/uploads.
func Open(staticDir, urlPrefix, dbPath string, log zerolog.Logger) (*Library, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		CREATE TABLE IF NOT EXISTS images (
			filename TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			size INTEGER NOT NULL,
			uploaded_at INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &Library{
		dir:       filepath.Join(staticDir, uploadsSubdir),
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		db:        db,
		log:       log,
	}, nil
}

// Close closes the metadata database.
func (l *Library) Close() error { return l.db.Close() }

// URL returns the public URL of a stored file.
func (l *Library) URL(filename string) string {
	return path.Join(l.urlPrefix+"/", uploadsSubdir, filename)
}

// Save processes and stores an upload. The filename is made unique by
// appending a counter.
func (l *Library) Save(ctx context.Context, src io.Reader, originalName string) (Image, error) {
	img, data, err := Process(src, originalName)
	if err != nil {
		return Image{}, err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create uploads dir: %w", err)
	}
	if img.Filename, err = l.uniqueFilename(ctx, img.Filename); err != nil {
		return Image{}, err
	}
	if err := os.WriteFile(filepath.Join(l.dir, img.Filename), data, 0o644); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `INSERT INTO images (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt.UnixMilli())
	if err != nil {
		os.Remove(filepath.Join(l.dir, img.Filename))
		return Image{}, fmt.Errorf("save image metadata: %w", err)
	}
	l.log.Info().Str("filename", img.Filename).Int("bytes", img.Size).Msg("image uploaded")
	return img, nil
}

func (l *Library) uniqueFilename(ctx context.Context, name string) (string, error) {
	base := strings.TrimSuffix(name, ".jpg")
	candidate := name
	for n := 2; ; n++ {
		_, statErr := os.Stat(filepath.Join(l.dir, candidate))
		var exists int
		if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE filename = ?`, candidate).Scan(&exists); err != nil {
			return "", err
		}
		if statErr != nil && exists == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, n)
	}
}

// List returns every stored image, newest first.
func (l *Library) List(ctx context.Context) ([]Image, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Image
	for rows.Next() {
		var img Image
		var ms int64
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &ms); err != nil {
			return nil, err
		}
		img.UploadedAt = time.UnixMilli(ms).UTC()
		out = append(out, img)
	}
	return out, rows.Err()
}

// Delete removes a stored image. A file already gone from disk is not an
// error.
func (l *Library) Delete(ctx context.Context, filename string) error {
	if !validFilename(filename) {
		return fmt.Errorf("%w %q", ErrInvalidFilename, filename)
	}
	if err := os.Remove(filepath.Join(l.dir, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	_, err := l.db.ExecContext(ctx, `DELETE FROM images WHERE filename = ?`, filename)
	return err
}

func validFilename(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return name == filepath.Base(name) && !strings.ContainsRune(name, '\\')
}
