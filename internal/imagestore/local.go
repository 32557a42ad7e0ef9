package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps images on the local filesystem under a single directory
// and references them as "/uploads/<name>" URL paths.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory served under /uploads/.
func (s *LocalStore) Dir() string { return s.dir }

// Save implements Store. Stored names are random to avoid collisions
// between same-named uploads.
func (s *LocalStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %q: %w", name, err)
	}
	return "/uploads/" + name, nil
}

// Load implements Store.
func (s *LocalStore) Load(ctx context.Context, ref string) ([]byte, error) {
	name := strings.TrimPrefix(ref, "/uploads/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid image reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read image %q: %w", ref, err)
	}
	return data, nil
}

var _ Store = (*LocalStore)(nil)
