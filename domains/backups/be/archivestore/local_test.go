package archivestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalPutFetch(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	staging := t.TempDir()
	src := filepath.Join(staging, "acme_20250101_000000.zip")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	path, err := store.Put(context.Background(), "acme_20250101_000000.zip", src)
	require.NoError(t, err)
	require.FileExists(t, path)

	dest := t.TempDir()
	fetched, err := store.Fetch(context.Background(), "acme_20250101_000000.zip", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(fetched)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestLocalFetchMissing(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "nope.zip", t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}
