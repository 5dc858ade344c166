// Package provisioning holds the collaborators the tenant service drives
// against the document store, currently the baseline-data seeder.
package provisioning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/luminapos/lumina-saas/domains/tenants/be/service"
)

// SeedStage identifies which of the three seed batches failed.
type SeedStage string

const (
	StagePermissions SeedStage = "permissions"
	StageSettings    SeedStage = "settings"
	StageAccount     SeedStage = "account"
)

// SeedError marks a fatal seed failure with the stage to retry.
type SeedError struct {
	Stage SeedStage
	Err   error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("seed failed at stage %s: %v", e.Stage, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }

// DefaultBootstrapPIN is the documented first-login secret of the bootstrap
// account. It is stored only as a salted bcrypt hash and is meant to be
// changed on first login, not to be a security guarantee.
const DefaultBootstrapPIN = "12345"

type permissionDoc struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsActive     bool   `json:"is_active"`
	PermissionID int    `json:"permission_id"`
}

type settingDoc struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type accountDoc struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Type     string `json:"type"`
	Admin    bool   `json:"admin"`
	PinCode  string `json:"pinCode"`
}

// permissionCatalog is the fixed set of permission records every new tenant
// database starts with. Identifiers are stable and referenced by the POS app.
var permissionCatalog = []struct {
	Name string
	ID   int
}{
	{"Location", 1}, {"Category", 2}, {"Products", 3}, {"Product_modifier", 4},
	{"Discount", 5}, {"Session", 6}, {"User", 7}, {"POS", 8},
	{"Order", 9}, {"Refund", 10}, {"Entity_category", 11}, {"Entity", 12},
	{"Customer", 13}, {"Account", 14}, {"Permission_group", 15},
	{"Inventory_movement", 16}, {"Inventory_category", 17},
	{"Inventory_product", 18}, {"Printer", 19}, {"Setting", 20},
}

// settingCatalog is the fixed set of feature flags, all off by default.
var settingCatalog = []string{"Waiter", "Customer", "Inventory"}

// BulkInserter is the single document-store operation the seeder needs.
type BulkInserter interface {
	BulkInsert(ctx context.Context, name string, docs []json.RawMessage) error
}

// Seeder writes the baseline documents of a freshly provisioned database.
type Seeder struct {
	store BulkInserter
}

// NewSeeder constructs a Seeder.
func NewSeeder(store BulkInserter) *Seeder {
	if store == nil {
		panic("seeder requires a document store")
	}
	return &Seeder{store: store}
}

// Seed issues exactly three bulk inserts: the permissions catalog, the
// feature-settings catalog and a single-element batch with the bootstrap
// account. Each stage failure is fatal and tagged with the stage name.
func (s *Seeder) Seed(ctx context.Context, databaseName string) error {
	permissions := make([]json.RawMessage, 0, len(permissionCatalog))
	for _, p := range permissionCatalog {
		doc, err := json.Marshal(permissionDoc{
			ID:           "permission_" + uuid.NewString(),
			Name:         p.Name,
			Type:         "permission",
			IsActive:     false,
			PermissionID: p.ID,
		})
		if err != nil {
			return &SeedError{Stage: StagePermissions, Err: err}
		}
		permissions = append(permissions, doc)
	}
	if err := s.store.BulkInsert(ctx, databaseName, permissions); err != nil {
		return &SeedError{Stage: StagePermissions, Err: err}
	}

	settings := make([]json.RawMessage, 0, len(settingCatalog))
	for _, name := range settingCatalog {
		doc, err := json.Marshal(settingDoc{
			ID:    "setting_" + uuid.NewString(),
			Name:  name,
			Value: false,
		})
		if err != nil {
			return &SeedError{Stage: StageSettings, Err: err}
		}
		settings = append(settings, doc)
	}
	if err := s.store.BulkInsert(ctx, databaseName, settings); err != nil {
		return &SeedError{Stage: StageSettings, Err: err}
	}

	// Fresh salt per call; two tenants never share a hash.
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultBootstrapPIN), bcrypt.DefaultCost)
	if err != nil {
		return &SeedError{Stage: StageAccount, Err: err}
	}
	account, err := json.Marshal(accountDoc{
		ID:       "user_" + uuid.NewString(),
		Name:     "Super User",
		IsActive: true,
		Type:     "user",
		Admin:    true,
		PinCode:  string(hash),
	})
	if err != nil {
		return &SeedError{Stage: StageAccount, Err: err}
	}
	if err := s.store.BulkInsert(ctx, databaseName, []json.RawMessage{account}); err != nil {
		return &SeedError{Stage: StageAccount, Err: err}
	}

	return nil
}

var _ service.Seeder = (*Seeder)(nil)
