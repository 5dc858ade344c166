package service

import (
	"context"

	"github.com/luminapos/lumina-saas/platform/go/couch"
)

// DocumentStore is the slice of the document-store admin API the provisioner
// needs. *couch.Client satisfies it; tests substitute recording stubs.
type DocumentStore interface {
	CreateDatabase(ctx context.Context, name string) (couch.CreateState, error)
	SetSecurityPolicy(ctx context.Context, name, principal string) error
	CreateUser(ctx context.Context, name, secret string) error
	DeleteDatabase(ctx context.Context, name string) error
}

// Seeder populates a freshly created tenant database with its baseline
// documents (permissions catalog, feature settings, bootstrap account).
type Seeder interface {
	Seed(ctx context.Context, databaseName string) error
}

var _ DocumentStore = (*couch.Client)(nil)
