package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/luminapos/lumina-saas/platform/go/couch"
)

// DocumentStore is the slice of the document-store admin API the backup and
// restore pipelines need. *couch.Client satisfies it.
type DocumentStore interface {
	ListDatabases(ctx context.Context) ([]string, error)
	FetchAllDocuments(ctx context.Context, name string) (couch.AllDocs, error)
	CreateDatabase(ctx context.Context, name string) (couch.CreateState, error)
	SetSecurityPolicy(ctx context.Context, name, principal string) error
	DeleteDatabase(ctx context.Context, name string) error
	BulkInsert(ctx context.Context, name string, docs []json.RawMessage) error
}

// CompanyResolver maps a database name to its owning company, if any. A nil
// id with a nil error means the database has no registered owner, which is
// fine for snapshots of databases created out of band.
type CompanyResolver interface {
	CompanyIDForDatabase(ctx context.Context, databaseName string) (*uuid.UUID, error)
}

// ResolverFunc adapts a function to the CompanyResolver interface.
type ResolverFunc func(ctx context.Context, databaseName string) (*uuid.UUID, error)

func (f ResolverFunc) CompanyIDForDatabase(ctx context.Context, databaseName string) (*uuid.UUID, error) {
	return f(ctx, databaseName)
}

var _ DocumentStore = (*couch.Client)(nil)
