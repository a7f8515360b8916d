// Package assets stores user-uploaded background images on local disk and
// maps them to public URLs served under /assets/.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the upload limit for a single background image.
const MaxImageBytes = 5 * 1024 * 1024

// URLPrefix is the route the store's files are served from.
const URLPrefix = "/assets/"

// rasterTypes are the accepted upload formats. SVG is refused: it can carry
// script and uploads are served from the API's own origin.
var rasterTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

var (
	ErrTooLarge   = errors.New("image exceeds 5MB limit")
	ErrNotImage   = errors.New("file is not an image")
	ErrInvalidKey = errors.New("invalid asset key")
)

func isRaster(mtype *mimetype.MIME) bool {
	for _, allowed := range rasterTypes {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}

// Object describes a stored file.
type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

type Store struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewStore returns a store rooted at dir. baseURL is prepended to URLPrefix
// when building public URLs; empty yields root-relative URLs.
func NewStore(dir, baseURL string) *Store {
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// SaveImage validates r as an image of at most MaxImageBytes and stores it
// under <userID>/<unixMillis><ext>.
func (s *Store) SaveImage(userID string, r io.Reader) (Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return Object{}, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !isRaster(mtype) {
		return Object{}, ErrNotImage
	}

	key := fmt.Sprintf("%s/%d%s", userID, s.now().UnixMilli(), mtype.Extension())
	if err := s.Put(key, bytes.NewReader(data)); err != nil {
		return Object{}, err
	}

	return Object{
		Key:         key,
		URL:         s.URL(key),
		ContentType: mtype.String(),
		Size:        int64(len(data)),
	}, nil
}

// Put writes r to key, replacing any existing object.
func (s *Store) Put(key string, r io.Reader) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp asset: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit asset: %w", err)
	}
	return nil
}

// Delete removes key. Missing objects are not an error.
func (s *Store) Delete(key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func (s *Store) URL(key string) string {
	return s.baseURL + URLPrefix + key
}

// KeyFromURL reverses URL. It reports false for URLs this store did not
// produce.
func (s *Store) KeyFromURL(rawURL string) (string, bool) {
	prefix := s.baseURL + URLPrefix
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if _, err := s.path(key); err != nil {
		return "", false
	}
	return key, true
}

// OwnerOf returns the user id segment of key.
func OwnerOf(key string) string {
	owner, _, found := strings.Cut(key, "/")
	if !found {
		return ""
	}
	return owner
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(cleaned)), nil
}
