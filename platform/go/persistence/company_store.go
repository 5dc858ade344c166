package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/luminapos/lumina-saas/database"
)

// CompanyRecord is the persisted shape of a tenant. database_user and
// database_secret are owned by the provisioner and read-only everywhere else.
type CompanyRecord struct {
	CompanyID      uuid.UUID `db:"company_id"`
	Name           string    `db:"name"`
	DeploymentType string    `db:"deployment_type"`
	DatabaseName   string    `db:"database_name"`
	DatabaseUser   string    `db:"database_user"`
	DatabaseSecret string    `db:"database_secret"`
	Provisioned    bool      `db:"provisioned"`
	CreatedAt      time.Time `db:"created_at"`
}

// CompanyStore provides access to the companies table.
type CompanyStore struct {
	pool *pgxpool.Pool
}

// NewCompanyStore creates the store and ensures the table exists.
func NewCompanyStore(ctx context.Context, pool *pgxpool.Pool) (*CompanyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if _, err := pool.Exec(ctx, sqlassets.CompaniesSQL); err != nil {
		return nil, fmt.Errorf("ensure companies table: %w", err)
	}
	return &CompanyStore{pool: pool}, nil
}

const companyColumns = `company_id, name, deployment_type, database_name, database_user, database_secret, provisioned, created_at`

// Create inserts a company record.
func (s *CompanyStore) Create(ctx context.Context, rec CompanyRecord) (CompanyRecord, error) {
	if rec.CompanyID == uuid.Nil {
		return CompanyRecord{}, errors.New("company id is required")
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO companies (`+companyColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING `+companyColumns,
		rec.CompanyID, rec.Name, rec.DeploymentType, rec.DatabaseName,
		rec.DatabaseUser, rec.DatabaseSecret, rec.Provisioned, rec.CreatedAt,
	)

	out, err := scanCompany(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return CompanyRecord{}, ErrDuplicate
		}
		return CompanyRecord{}, fmt.Errorf("insert company: %w", err)
	}
	return out, nil
}

// Get returns a company by id.
func (s *CompanyStore) Get(ctx context.Context, id uuid.UUID) (CompanyRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_id = $1`, id)
	out, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyRecord{}, ErrNotFound
		}
		return CompanyRecord{}, fmt.Errorf("select company: %w", err)
	}
	return out, nil
}

// GetByDatabaseName resolves the owning company of a sanitized database name.
func (s *CompanyStore) GetByDatabaseName(ctx context.Context, name string) (CompanyRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE database_name = $1`, name)
	out, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyRecord{}, ErrNotFound
		}
		return CompanyRecord{}, fmt.Errorf("select company by database name: %w", err)
	}
	return out, nil
}

// List returns every company ordered by creation time.
func (s *CompanyStore) List(ctx context.Context) ([]CompanyRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []CompanyRecord
	for rows.Next() {
		rec, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update rewrites the mutable and provisioner-derived fields of a company.
func (s *CompanyStore) Update(ctx context.Context, rec CompanyRecord) (CompanyRecord, error) {
	row := s.pool.QueryRow(ctx, `
        UPDATE companies
        SET name = $2, deployment_type = $3, database_name = $4,
            database_user = $5, database_secret = $6, provisioned = $7
        WHERE company_id = $1
        RETURNING `+companyColumns,
		rec.CompanyID, rec.Name, rec.DeploymentType, rec.DatabaseName,
		rec.DatabaseUser, rec.DatabaseSecret, rec.Provisioned,
	)

	out, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyRecord{}, ErrNotFound
		}
		return CompanyRecord{}, fmt.Errorf("update company: %w", err)
	}
	return out, nil
}

// Delete removes a company record.
func (s *CompanyStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE company_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCompany(row pgx.Row) (CompanyRecord, error) {
	var rec CompanyRecord
	err := row.Scan(
		&rec.CompanyID, &rec.Name, &rec.DeploymentType, &rec.DatabaseName,
		&rec.DatabaseUser, &rec.DatabaseSecret, &rec.Provisioned, &rec.CreatedAt,
	)
	return rec, err
}
