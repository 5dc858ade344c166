package archivestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCS stores archives as objects under a bucket prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS constructs a GCS store.
func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	if client == nil {
		panic("gcs archive store requires client")
	}
	if bucket == "" {
		panic("gcs archive store requires bucket")
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name))
}

func (g *GCS) Put(ctx context.Context, name, srcPath string) (string, error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open archive %q: %w", srcPath, err)
	}
	defer in.Close()

	obj := g.object(name)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload archive %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %q: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, obj.ObjectName()), nil
}

func (g *GCS) Fetch(ctx context.Context, name, destDir string) (string, error) {
	r, err := g.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("open archive object %q: %w", name, err)
	}
	defer r.Close()

	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create local archive %q: %w", dest, err)
	}

	_, copyErr := io.Copy(out, r)
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return "", fmt.Errorf("download archive %q: %w", name, copyErr)
	}
	return dest, nil
}

var _ Store = (*GCS)(nil)
