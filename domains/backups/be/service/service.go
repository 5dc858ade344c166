// Package service implements the backup and restore engine: full snapshots
// of tenant databases into zip archives, and destructive restores from them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/luminapos/lumina-saas/domains/backups/be/archivestore"
	"github.com/luminapos/lumina-saas/platform/go/archive"
	"github.com/luminapos/lumina-saas/platform/go/metrics"
	"github.com/luminapos/lumina-saas/platform/go/naming"
)

// Errors returned by the backup engine.
var (
	ErrNotFound = errors.New("backup not found")
	// ErrArchiveNotFound reports a manifest entry whose archive is gone from
	// the store. Raised before any document-store call so a restore never
	// tears down a live database it cannot rebuild.
	ErrArchiveNotFound  = errors.New("backup archive not found in store")
	ErrMalformedArchive = errors.New("backup archive is malformed")
	// ErrImmutable guards the manifest: entries are history, never edited.
	ErrImmutable = errors.New("backup manifests are immutable")
)

// timestampLayout names archives sortably: {db}_{20060102_150405}.zip.
const timestampLayout = "20060102_150405"

// snapshotSchema is the contract an archive payload must meet before a
// restore is allowed to touch the target database.
const snapshotSchema = `{
	"type": "object",
	"required": ["rows"],
	"properties": {
		"rows": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "doc"],
				"properties": {
					"id": {"type": "string"},
					"doc": {"type": "object"}
				}
			}
		}
	}
}`

// Backup is one manifest entry.
type Backup struct {
	ID           uuid.UUID
	DatabaseName string
	CompanyID    *uuid.UUID
	CreatedAt    time.Time
	Path         string
	Description  string
}

// FailedBackup names a database whose snapshot failed during a sweep.
type FailedBackup struct {
	DatabaseName string
	Reason       string
}

// SweepResult summarizes a backup-all run. One failing database never stops
// the sweep; it lands here instead.
type SweepResult struct {
	Succeeded []Backup
	Failed    []FailedBackup
}

// Repository abstracts the append-only backup manifest.
type Repository interface {
	Create(ctx context.Context, b Backup) (Backup, error)
	Get(ctx context.Context, id uuid.UUID) (Backup, error)
	List(ctx context.Context, companyID *uuid.UUID) ([]Backup, error)
}

type snapshot struct {
	Rows []snapshotRow `json:"rows"`
}

type snapshotRow struct {
	ID  string          `json:"id"`
	Doc json.RawMessage `json:"doc"`
}

// Service drives snapshots and restores.
type Service struct {
	repo     Repository
	store    DocumentStore
	archives archivestore.Store
	resolver CompanyResolver
	logger   *zap.Logger
	metrics  *metrics.Metrics
	workDir  string
	schema   *jsonschema.Schema
	now      func() time.Time
}

// Config wires the service dependencies. WorkDir defaults to the system
// temp directory; Resolver and Metrics may be nil.
type Config struct {
	Repo     Repository
	Store    DocumentStore
	Archives archivestore.Store
	Resolver CompanyResolver
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	WorkDir  string
}

// New constructs a Service.
func New(cfg Config) *Service {
	if cfg.Repo == nil {
		panic("backup repo is required")
	}
	if cfg.Store == nil {
		panic("document store is required")
	}
	if cfg.Archives == nil {
		panic("archive store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("memory://snapshot.json", strings.NewReader(snapshotSchema)); err != nil {
		panic(fmt.Sprintf("register snapshot schema: %v", err))
	}
	schema, err := compiler.Compile("memory://snapshot.json")
	if err != nil {
		panic(fmt.Sprintf("compile snapshot schema: %v", err))
	}

	return &Service{
		repo:     cfg.Repo,
		store:    cfg.Store,
		archives: cfg.Archives,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		workDir:  cfg.WorkDir,
		schema:   schema,
		now:      time.Now,
	}
}

// BackupOne snapshots a single database into a new archive and appends a
// manifest entry. The staging directory is removed whether or not the upload
// succeeds; the archive store holds the only durable copy.
func (s *Service) BackupOne(ctx context.Context, databaseName, description string) (Backup, error) {
	if databaseName == "" {
		return Backup{}, fmt.Errorf("database name is required")
	}

	docs, err := s.store.FetchAllDocuments(ctx, databaseName)
	if err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("snapshot %q: %w", databaseName, err)
	}

	rows := make([]snapshotRow, 0, len(docs.Rows))
	for _, row := range docs.Rows {
		rows = append(rows, snapshotRow{ID: row.ID, Doc: row.Doc})
	}
	payload, err := json.Marshal(snapshot{Rows: rows})
	if err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("encode snapshot of %q: %w", databaseName, err)
	}

	createdAt := s.now().UTC()
	base := fmt.Sprintf("%s_%s", databaseName, createdAt.Format(timestampLayout))

	staging, err := os.MkdirTemp(s.workDir, "backup-")
	if err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	zipPath := filepath.Join(staging, base+".zip")
	if err := archive.WriteJSON(zipPath, base+".json", payload); err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("write archive for %q: %w", databaseName, err)
	}

	storedPath, err := s.archives.Put(ctx, base+".zip", zipPath)
	if err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("store archive for %q: %w", databaseName, err)
	}

	// The _-prefix marks store-internal databases (_users, _replicator); their
	// manifest entries carry no owning company.
	var companyID *uuid.UUID
	if s.resolver != nil && !strings.HasPrefix(databaseName, "_") {
		companyID, err = s.resolver.CompanyIDForDatabase(ctx, databaseName)
		if err != nil {
			// The snapshot is already durable; an unowned entry beats losing it.
			s.logger.Warn("could not resolve owning company",
				zap.String("database", databaseName), zap.Error(err))
			companyID = nil
		}
	}

	b, err := s.repo.Create(ctx, Backup{
		ID:           uuid.New(),
		DatabaseName: databaseName,
		CompanyID:    companyID,
		CreatedAt:    createdAt,
		Path:         storedPath,
		Description:  description,
	})
	if err != nil {
		s.metrics.ObserveBackup(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("record backup of %q: %w", databaseName, err)
	}

	s.metrics.ObserveBackup(metrics.OutcomeSuccess)
	s.logger.Info("database backed up",
		zap.String("database", databaseName),
		zap.String("archive", storedPath))
	return b, nil
}

// BackupAll snapshots every database known to the store, system databases
// included. Individual failures are collected, not fatal, so one broken
// database never blocks the sweep.
func (s *Service) BackupAll(ctx context.Context, description string) (SweepResult, error) {
	names, err := s.store.ListDatabases(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list databases: %w", err)
	}

	var result SweepResult
	for _, name := range names {
		b, err := s.BackupOne(ctx, name, description)
		if err != nil {
			s.logger.Error("backup failed, continuing sweep",
				zap.String("database", name), zap.Error(err))
			result.Failed = append(result.Failed, FailedBackup{DatabaseName: name, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, b)
	}
	return result, nil
}

// Restore rebuilds a database from a manifest entry. The target database is
// deleted and recreated, the archived documents are inserted with their
// revision markers stripped, and the security policy is reset to the derived
// database principal. The archive itself is never deleted.
func (s *Service) Restore(ctx context.Context, backupID uuid.UUID) (Backup, error) {
	b, err := s.repo.Get(ctx, backupID)
	if err != nil {
		return Backup{}, err
	}

	workDir := filepath.Join(s.workDir, "restore-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return Backup{}, fmt.Errorf("create restore dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Everything that can fail without an external side effect happens first:
	// fetch, extract, validate. Only then is the live database touched.
	archiveName := filepath.Base(b.Path)
	localZip, err := s.archives.Fetch(ctx, archiveName, workDir)
	if err != nil {
		if errors.Is(err, archivestore.ErrNotFound) {
			return Backup{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, archiveName)
		}
		s.metrics.ObserveRestore(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("fetch archive %q: %w", archiveName, err)
	}

	docs, err := s.loadSnapshot(localZip, workDir)
	if err != nil {
		s.metrics.ObserveRestore(metrics.OutcomeFailure)
		return Backup{}, err
	}

	if err := s.store.DeleteDatabase(ctx, b.DatabaseName); err != nil {
		s.metrics.ObserveRestore(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("drop database %q: %w", b.DatabaseName, err)
	}
	if _, err := s.store.CreateDatabase(ctx, b.DatabaseName); err != nil {
		s.metrics.ObserveRestore(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("recreate database %q: %w", b.DatabaseName, err)
	}

	principal := naming.DatabaseUserFor(b.DatabaseName)
	if err := s.store.SetSecurityPolicy(ctx, b.DatabaseName, principal); err != nil {
		s.metrics.ObserveRestore(metrics.OutcomeFailure)
		return Backup{}, fmt.Errorf("secure restored database %q: %w", b.DatabaseName, err)
	}

	if len(docs) > 0 {
		if err := s.store.BulkInsert(ctx, b.DatabaseName, docs); err != nil {
			s.metrics.ObserveRestore(metrics.OutcomeFailure)
			return Backup{}, fmt.Errorf("load documents into %q: %w", b.DatabaseName, err)
		}
	}

	s.metrics.ObserveRestore(metrics.OutcomeSuccess)
	s.logger.Info("database restored",
		zap.String("database", b.DatabaseName),
		zap.String("archive", archiveName),
		zap.String("principal", principal))
	return b, nil
}

// loadSnapshot extracts and validates the archive payload, returning the
// documents ready for insertion with revision markers stripped.
func (s *Service) loadSnapshot(zipPath, workDir string) ([]json.RawMessage, error) {
	jsonPath, err := archive.ExtractJSON(zipPath, workDir)
	if err != nil {
		if errors.Is(err, archive.ErrNoJSONEntry) {
			return nil, fmt.Errorf("%w: no json entry", ErrMalformedArchive)
		}
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	payload, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", err)
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	docs := make([]json.RawMessage, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		doc, err := stripRevision(row.Doc)
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", ErrMalformedArchive, row.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// stripRevision removes the _rev field so the target database assigns fresh
// revisions instead of rejecting the insert.
func stripRevision(doc json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_rev")
	return json.Marshal(fields)
}

// Get returns a manifest entry by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Backup, error) {
	return s.repo.Get(ctx, id)
}

// List returns manifest entries, optionally scoped to one company.
func (s *Service) List(ctx context.Context, companyID *uuid.UUID) ([]Backup, error) {
	return s.repo.List(ctx, companyID)
}

// Delete always refuses: the manifest is an append-only history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return ErrImmutable
}
