package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/luminapos/lumina-saas/domains/backups/be/service"
)

// MemoryRepository is an in-memory manifest for tests. Like its durable
// counterpart it only appends and reads.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]service.Backup
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]service.Backup)}
}

func (r *MemoryRepository) Create(ctx context.Context, b service.Backup) (service.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[b.ID] = b
	return b, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Backup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return service.Backup{}, service.ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepository) List(ctx context.Context, companyID *uuid.UUID) ([]service.Backup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Backup, 0, len(r.byID))
	for _, b := range r.byID {
		if companyID != nil && (b.CompanyID == nil || *b.CompanyID != *companyID) {
			continue
		}
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
