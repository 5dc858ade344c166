package archivestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores archives as plain files under a base directory.
type Local struct {
	dir string
}

// NewLocal constructs a Local store and ensures the directory exists.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory %q: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, name, srcPath string) (string, error) {
	dest := filepath.Join(l.dir, name)
	if err := copyFile(srcPath, dest); err != nil {
		return "", fmt.Errorf("store archive %q: %w", name, err)
	}
	return dest, nil
}

func (l *Local) Fetch(ctx context.Context, name, destDir string) (string, error) {
	src := filepath.Join(l.dir, name)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat archive %q: %w", name, err)
	}

	dest := filepath.Join(destDir, name)
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("fetch archive %q: %w", name, err)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	return copyErr
}

var _ Store = (*Local)(nil)
