package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/luminapos/lumina-saas/database"
)

// BackupRecord is one manifest entry. Rows are append-only: the store exposes
// no update or delete so the manifest stays a faithful history.
type BackupRecord struct {
	BackupID     uuid.UUID  `db:"backup_id"`
	DatabaseName string     `db:"database_name"`
	CompanyID    *uuid.UUID `db:"company_id"`
	CreatedAt    time.Time  `db:"created_at"`
	Path         string     `db:"path"`
	Description  string     `db:"description"`
}

// BackupStore provides append/read access to the backups table.
type BackupStore struct {
	pool *pgxpool.Pool
}

// NewBackupStore creates the store and ensures the table exists. The
// companies table must exist first (foreign key).
func NewBackupStore(ctx context.Context, pool *pgxpool.Pool) (*BackupStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if _, err := pool.Exec(ctx, sqlassets.BackupsSQL); err != nil {
		return nil, fmt.Errorf("ensure backups table: %w", err)
	}
	return &BackupStore{pool: pool}, nil
}

const backupColumns = `backup_id, database_name, company_id, created_at, path, description`

// Create appends a manifest entry.
func (s *BackupStore) Create(ctx context.Context, rec BackupRecord) (BackupRecord, error) {
	if rec.BackupID == uuid.Nil {
		return BackupRecord{}, errors.New("backup id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO backups (`+backupColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING `+backupColumns,
		rec.BackupID, rec.DatabaseName, rec.CompanyID, rec.CreatedAt, rec.Path, rec.Description,
	)

	out, err := scanBackup(row)
	if err != nil {
		return BackupRecord{}, fmt.Errorf("insert backup: %w", err)
	}
	return out, nil
}

// Get returns a manifest entry by id.
func (s *BackupStore) Get(ctx context.Context, id uuid.UUID) (BackupRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE backup_id = $1`, id)
	out, err := scanBackup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BackupRecord{}, ErrNotFound
		}
		return BackupRecord{}, fmt.Errorf("select backup: %w", err)
	}
	return out, nil
}

// List returns manifest entries, newest first. A non-nil companyID narrows
// the listing to one tenant.
func (s *BackupStore) List(ctx context.Context, companyID *uuid.UUID) ([]BackupRecord, error) {
	query := `SELECT ` + backupColumns + ` FROM backups ORDER BY created_at DESC`
	args := []any{}
	if companyID != nil {
		query = `SELECT ` + backupColumns + ` FROM backups WHERE company_id = $1 ORDER BY created_at DESC`
		args = append(args, *companyID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []BackupRecord
	for rows.Next() {
		rec, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanBackup(row pgx.Row) (BackupRecord, error) {
	var rec BackupRecord
	err := row.Scan(
		&rec.BackupID, &rec.DatabaseName, &rec.CompanyID,
		&rec.CreatedAt, &rec.Path, &rec.Description,
	)
	return rec, err
}
