package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/luminapos/lumina-saas/domains/tenants/be/service"
	"github.com/luminapos/lumina-saas/platform/go/persistence"
)

// PostgresRepository implements the company repository on the shared
// metadata store.
type PostgresRepository struct {
	store *persistence.CompanyStore
}

// NewPostgresRepository constructs a repository backed by CompanyStore.
func NewPostgresRepository(store *persistence.CompanyStore) *PostgresRepository {
	if store == nil {
		panic("company store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.Create(ctx, toRecord(t))
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return service.Tenant{}, service.ErrDuplicateName
		}
		return service.Tenant{}, err
	}
	return toTenant(rec), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toTenant(rec), nil
}

func (r *PostgresRepository) FindByDatabaseName(ctx context.Context, name string) (service.Tenant, error) {
	rec, err := r.store.GetByDatabaseName(ctx, name)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toTenant(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]service.Tenant, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]service.Tenant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toTenant(rec))
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.Update(ctx, toRecord(t))
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toTenant(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func toRecord(t service.Tenant) persistence.CompanyRecord {
	return persistence.CompanyRecord{
		CompanyID:      t.ID,
		Name:           t.Name,
		DeploymentType: string(t.DeploymentType),
		DatabaseName:   t.DatabaseName,
		DatabaseUser:   t.DatabaseUser,
		DatabaseSecret: t.DatabaseSecret,
		Provisioned:    t.Provisioned,
		CreatedAt:      t.CreatedAt,
	}
}

func toTenant(rec persistence.CompanyRecord) service.Tenant {
	return service.Tenant{
		ID:             rec.CompanyID,
		Name:           rec.Name,
		DeploymentType: service.DeploymentType(rec.DeploymentType),
		DatabaseName:   rec.DatabaseName,
		DatabaseUser:   rec.DatabaseUser,
		DatabaseSecret: rec.DatabaseSecret,
		Provisioned:    rec.Provisioned,
		CreatedAt:      rec.CreatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return service.ErrNotFound
	}
	return err
}

var _ service.Repository = (*PostgresRepository)(nil)
