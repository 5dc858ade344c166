package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luminapos/lumina-saas/platform/go/couch"
	"github.com/luminapos/lumina-saas/platform/go/metrics"
	"github.com/luminapos/lumina-saas/platform/go/naming"
)

// Errors returned by the service layer.
var (
	ErrNotFound = errors.New("company not found")
	// ErrAlreadyProvisioned reports that the external database pre-existed:
	// provisioning stopped before policy, principal and seed steps so a live
	// database is never destructively re-seeded.
	ErrAlreadyProvisioned = errors.New("company database already provisioned")
	ErrDuplicateName      = errors.New("company database name already in use")
)

// ValidationError rejects a draft before any external call, with the field
// that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DeploymentType selects whether a company runs against a hosted database.
type DeploymentType string

const (
	// DeploymentOnPremise companies manage their own database; the control
	// plane only keeps the registry record.
	DeploymentOnPremise DeploymentType = "on_premise"
	// DeploymentHosted companies get an isolated database provisioned in the
	// shared document store.
	DeploymentHosted DeploymentType = "hosted"
)

// Tenant is the domain model for a company registry entry. DatabaseUser and
// DatabaseSecret are derived once at provisioning time and never exposed over
// the API surface.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	DeploymentType DeploymentType
	DatabaseName   string
	DatabaseUser   string
	DatabaseSecret string
	Provisioned    bool
	CreatedAt      time.Time
}

// CreateInput is the request to provision a company.
type CreateInput struct {
	Name           string
	DeploymentType DeploymentType
}

// UpdateInput carries the mutable fields of a company.
type UpdateInput struct {
	Name *string
}

// Repository abstracts company metadata persistence.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	FindByDatabaseName(ctx context.Context, name string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, t Tenant) (Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service orchestrates company provisioning against the document store.
type Service struct {
	repo    Repository
	store   DocumentStore
	seeder  Seeder
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New constructs a Service with required dependencies. Metrics may be nil.
func New(repo Repository, store DocumentStore, seeder Seeder, logger *zap.Logger, m *metrics.Metrics) *Service {
	if repo == nil {
		panic("company repo is required")
	}
	if store == nil {
		panic("document store is required")
	}
	if seeder == nil {
		panic("seeder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, store: store, seeder: seeder, logger: logger, metrics: m}
}

// Provision validates the draft, persists the registry record and, for hosted
// companies, walks the external provisioning sequence: create database, set
// security policy, create principal, seed baseline documents.
//
// The record is persisted before the first external call so a crash mid-way
// leaves a discoverable company an operator can reconcile. Failures after the
// database was created trigger a compensating delete; the one window this
// cannot close is the compensating delete itself failing, which is logged and
// leaves both record and database in place for retry.
func (s *Service) Provision(ctx context.Context, input CreateInput) (Tenant, error) {
	if input.Name == "" {
		return Tenant{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch input.DeploymentType {
	case DeploymentOnPremise, DeploymentHosted:
	default:
		return Tenant{}, &ValidationError{Field: "deployment_type", Reason: fmt.Sprintf("unknown value %q", input.DeploymentType)}
	}

	t := Tenant{
		ID:             uuid.New(),
		Name:           input.Name,
		DeploymentType: input.DeploymentType,
		CreatedAt:      time.Now().UTC(),
	}

	// On-premise companies get a registry record and nothing else.
	if input.DeploymentType == DeploymentOnPremise {
		return s.repo.Create(ctx, t)
	}

	sanitized := naming.SanitizeDatabaseName(input.Name)
	secret, err := naming.GeneratePassword(naming.DefaultPasswordLength)
	if err != nil {
		return Tenant{}, fmt.Errorf("generate database secret: %w", err)
	}

	t.DatabaseName = sanitized
	t.DatabaseUser = naming.DatabaseUserFor(sanitized)
	t.DatabaseSecret = secret

	t, err = s.repo.Create(ctx, t)
	if err != nil {
		return Tenant{}, err
	}

	state, err := s.store.CreateDatabase(ctx, sanitized)
	if err != nil {
		s.metrics.ObserveProvision(metrics.OutcomeFailure)
		return Tenant{}, fmt.Errorf("provision company %q: %w", t.ID, err)
	}

	if state == couch.StateAlreadyExists {
		// A live database is never re-secured or re-seeded from here; its
		// current policy stays in place, which the operator must review.
		s.logger.Warn("database already exists, skipping policy and seed",
			zap.String("database", sanitized))
		s.metrics.ObserveProvision(metrics.OutcomeSkipped)
		return t, ErrAlreadyProvisioned
	}

	// Policy must land before any document: a freshly created database is
	// publicly writable until _security is set.
	if err := s.store.SetSecurityPolicy(ctx, sanitized, t.DatabaseUser); err != nil {
		s.compensate(ctx, sanitized)
		s.metrics.ObserveProvision(metrics.OutcomeFailure)
		return Tenant{}, fmt.Errorf("secure database %q: %w", sanitized, err)
	}

	if err := s.store.CreateUser(ctx, t.DatabaseUser, t.DatabaseSecret); err != nil {
		s.compensate(ctx, sanitized)
		s.metrics.ObserveProvision(metrics.OutcomeFailure)
		return Tenant{}, fmt.Errorf("create database principal: %w", err)
	}

	if err := s.seeder.Seed(ctx, sanitized); err != nil {
		s.compensate(ctx, sanitized)
		s.metrics.ObserveProvision(metrics.OutcomeFailure)
		return Tenant{}, fmt.Errorf("seed database %q: %w", sanitized, err)
	}

	t.Provisioned = true
	t, err = s.repo.Update(ctx, t)
	if err != nil {
		return Tenant{}, fmt.Errorf("mark company provisioned: %w", err)
	}

	s.metrics.ObserveProvision(metrics.OutcomeSuccess)
	s.logger.Info("company provisioned",
		zap.String("company_id", t.ID.String()),
		zap.String("database", sanitized))
	return t, nil
}

// compensate removes a database created during a failed provisioning run. A
// failing delete is logged and otherwise swallowed: the registry record stays
// behind so the operator can retry.
func (s *Service) compensate(ctx context.Context, databaseName string) {
	if err := s.store.DeleteDatabase(ctx, databaseName); err != nil {
		s.logger.Error("compensating database delete failed, database left in place",
			zap.String("database", databaseName), zap.Error(err))
	}
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// List returns every company.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Update renames a company and re-issues the database principal with the
// stored credentials. The external database identifier is fixed at
// provisioning time; renames never move the database.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Tenant, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}

	if input.Name != nil && *input.Name != "" {
		t.Name = *input.Name
	}

	t, err = s.repo.Update(ctx, t)
	if err != nil {
		return Tenant{}, err
	}

	if t.DeploymentType == DeploymentHosted && t.DatabaseUser != "" {
		if err := s.store.CreateUser(ctx, t.DatabaseUser, t.DatabaseSecret); err != nil {
			return Tenant{}, fmt.Errorf("re-issue database principal: %w", err)
		}
	}

	return t, nil
}

// RotateCredentials re-registers the company's database principal with the
// stored secret. Used when the _users store is suspected wiped, e.g. after a
// restore of the system databases.
func (s *Service) RotateCredentials(ctx context.Context, id uuid.UUID) (Tenant, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if t.DeploymentType != DeploymentHosted || t.DatabaseUser == "" {
		return Tenant{}, &ValidationError{Field: "deployment_type", Reason: "company has no hosted database"}
	}

	if err := s.store.CreateUser(ctx, t.DatabaseUser, t.DatabaseSecret); err != nil {
		return Tenant{}, fmt.Errorf("rotate credentials: %w", err)
	}
	return t, nil
}

// Deprovision deletes the external database, then the registry record. The
// order is deliberate: a failed external delete leaves the record intact for
// retry instead of orphaning a live database with no owner.
func (s *Service) Deprovision(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if t.DatabaseName != "" {
		if err := s.store.DeleteDatabase(ctx, t.DatabaseName); err != nil {
			return fmt.Errorf("delete database %q: %w", t.DatabaseName, err)
		}
	}

	return s.repo.Delete(ctx, id)
}
