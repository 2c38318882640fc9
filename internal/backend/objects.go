package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectTooLarge is returned when an upload exceeds the store's limit.
var ErrObjectTooLarge = errors.New("file too large")

var unsafeObjectChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileObjectStore keeps uploaded statement documents on local disk and
// hands out URLs under a public base path.
type FileObjectStore struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewFileObjectStore creates dir if needed.
func NewFileObjectStore(dir, baseURL string, maxSize int64) (*FileObjectStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create statement dir: %w", err)
	}
	return &FileObjectStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// Dir is the directory objects are written to.
func (s *FileObjectStore) Dir() string { return s.dir }

// ObjectKey builds a collision-free key for a statement of fileNo.
func ObjectKey(fileNo, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := unsafeObjectChars.ReplaceAllString(strings.TrimSpace(fileNo), "_")
	if base == "" {
		base = "statement"
	}
	return base + "-" + uuid.NewString()[:8] + unsafeObjectChars.ReplaceAllString(ext, "")
}

// Put writes r under key and returns the object's public URL. Partial
// writes are removed.
func (s *FileObjectStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, key)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrObjectTooLarge
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}

	return s.baseURL + "/" + url.PathEscape(key), nil
}

// PutStatement stores a statement document for fileNo under a fresh key.
func (s *FileObjectStore) PutStatement(ctx context.Context, fileNo, name string, r io.Reader) (string, error) {
	return s.Put(ctx, ObjectKey(fileNo, name), r)
}

// KeyFromURL returns the key of an object URL issued by this store.
func (s *FileObjectStore) KeyFromURL(u string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(u, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(u, prefix))
	if err != nil || key != path.Base(key) {
		return "", false
	}
	return key, true
}
