// Package archivestore persists backup archives. Two backends exist: a local
// directory for on-host setups and a GCS bucket for hosted deployments.
package archivestore

import (
	"context"
	"errors"
)

// ErrNotFound reports that the named archive does not exist in the store.
var ErrNotFound = errors.New("archive not found")

// Store moves backup archives between the local staging area and durable
// storage. Names are flat; the store owns the layout behind them.
type Store interface {
	// Put uploads the file at srcPath under the given name and returns the
	// durable location for the manifest.
	Put(ctx context.Context, name, srcPath string) (string, error)
	// Fetch materializes the named archive inside destDir and returns the
	// local file path. Missing archives yield ErrNotFound.
	Fetch(ctx context.Context, name, destDir string) (string, error)
}
