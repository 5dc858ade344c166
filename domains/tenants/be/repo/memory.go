package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/luminapos/lumina-saas/domains/tenants/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]service.Tenant)}
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.DatabaseName != "" {
		for _, existing := range r.byID {
			if existing.DatabaseName == t.DatabaseName {
				return service.Tenant{}, service.ErrDuplicateName
			}
		}
	}

	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) FindByDatabaseName(ctx context.Context, name string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.byID {
		if t.DatabaseName == name {
			return t, nil
		}
	}
	return service.Tenant{}, service.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *MemoryRepository) Update(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return service.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

var _ service.Repository = (*MemoryRepository)(nil)
