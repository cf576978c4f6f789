package media

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DirPost    = "post"
	DirProfile = "profile"
)

// Store persists an uploaded image and returns the path or URL clients use
// to fetch it.
type Store interface {
	Save(ctx context.Context, dir, name string, data []byte, contentType string) (string, error)
}

// LocalStore writes files under root/image/<dir> and serves them from
// publicPrefix.
type LocalStore struct {
	root         string
	publicPrefix string
}

func NewLocalStore(root, publicPrefix string) *LocalStore {
	return &LocalStore{
		root:         root,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
	}
}

func (s *LocalStore) Save(ctx context.Context, dir, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validSegment(dir) || !validSegment(name) {
		return "", fmt.Errorf("invalid storage path %q/%q", dir, name)
	}

	target := filepath.Join(s.root, "image", dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return path.Join(s.publicPrefix, "image", dir, name), nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func objectKey(dir, name string) string {
	return path.Join("image", dir, name)
}
