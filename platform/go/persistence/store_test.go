package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func mustTestPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping metadata store integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lumina"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	return ctx, pool
}

func TestCompanyStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, pool := mustTestPool(t)

	companies, err := NewCompanyStore(ctx, pool)
	require.NoError(t, err)

	rec := CompanyRecord{
		CompanyID:      uuid.New(),
		Name:           "Acme Corp!",
		DeploymentType: "hosted",
		DatabaseName:   "acme_corp_",
		DatabaseUser:   "acme_corp__user",
		DatabaseSecret: "sUperSecretPw",
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}

	created, err := companies.Create(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, rec.CompanyID, created.CompanyID)
	require.False(t, created.Provisioned)

	_, err = companies.Create(ctx, rec)
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := companies.GetByDatabaseName(ctx, "acme_corp_")
	require.NoError(t, err)
	require.Equal(t, created.CompanyID, got.CompanyID)

	got.Provisioned = true
	updated, err := companies.Update(ctx, got)
	require.NoError(t, err)
	require.True(t, updated.Provisioned)

	all, err := companies.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, companies.Delete(ctx, created.CompanyID))
	require.ErrorIs(t, companies.Delete(ctx, created.CompanyID), ErrNotFound)
	_, err = companies.Get(ctx, created.CompanyID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBackupStoreAppendAndList(t *testing.T) {
	t.Parallel()

	ctx, pool := mustTestPool(t)

	companies, err := NewCompanyStore(ctx, pool)
	require.NoError(t, err)
	backups, err := NewBackupStore(ctx, pool)
	require.NoError(t, err)

	company, err := companies.Create(ctx, CompanyRecord{
		CompanyID:      uuid.New(),
		Name:           "acme_corp",
		DeploymentType: "hosted",
		DatabaseName:   "acme_corp",
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	owned, err := backups.Create(ctx, BackupRecord{
		BackupID:     uuid.New(),
		DatabaseName: "acme_corp",
		CompanyID:    &company.CompanyID,
		CreatedAt:    time.Now().UTC(),
		Path:         "/backups/acme_corp_20250101_120000.zip",
	})
	require.NoError(t, err)

	system, err := backups.Create(ctx, BackupRecord{
		BackupID:     uuid.New(),
		DatabaseName: "_users",
		CreatedAt:    time.Now().UTC().Add(time.Second),
		Path:         "/backups/_users_20250101_120000.zip",
	})
	require.NoError(t, err)
	require.Nil(t, system.CompanyID)

	all, err := backups.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	scoped, err := backups.List(ctx, &company.CompanyID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, owned.BackupID, scoped[0].BackupID)

	got, err := backups.Get(ctx, owned.BackupID)
	require.NoError(t, err)
	require.Equal(t, owned.Path, got.Path)
}
