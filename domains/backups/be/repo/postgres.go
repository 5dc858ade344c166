package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/luminapos/lumina-saas/domains/backups/be/service"
	"github.com/luminapos/lumina-saas/platform/go/persistence"
)

// PostgresRepository implements the backup manifest on the shared metadata
// store. The underlying table is append-only.
type PostgresRepository struct {
	store *persistence.BackupStore
}

// NewPostgresRepository constructs a repository backed by BackupStore.
func NewPostgresRepository(store *persistence.BackupStore) *PostgresRepository {
	if store == nil {
		panic("backup store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, b service.Backup) (service.Backup, error) {
	rec, err := r.store.Create(ctx, persistence.BackupRecord{
		BackupID:     b.ID,
		DatabaseName: b.DatabaseName,
		CompanyID:    b.CompanyID,
		CreatedAt:    b.CreatedAt,
		Path:         b.Path,
		Description:  b.Description,
	})
	if err != nil {
		return service.Backup{}, err
	}
	return toBackup(rec), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Backup, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return service.Backup{}, service.ErrNotFound
		}
		return service.Backup{}, err
	}
	return toBackup(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, companyID *uuid.UUID) ([]service.Backup, error) {
	recs, err := r.store.List(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out := make([]service.Backup, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toBackup(rec))
	}
	return out, nil
}

func toBackup(rec persistence.BackupRecord) service.Backup {
	return service.Backup{
		ID:           rec.BackupID,
		DatabaseName: rec.DatabaseName,
		CompanyID:    rec.CompanyID,
		CreatedAt:    rec.CreatedAt,
		Path:         rec.Path,
		Description:  rec.Description,
	}
}

var _ service.Repository = (*PostgresRepository)(nil)
