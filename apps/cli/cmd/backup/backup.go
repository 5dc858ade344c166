package backupcmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/luminapos/lumina-saas/domains/backups/be/archivestore"
	"github.com/luminapos/lumina-saas/domains/backups/be/repo"
	"github.com/luminapos/lumina-saas/domains/backups/be/service"
	tenantsrepo "github.com/luminapos/lumina-saas/domains/tenants/be/repo"
	tenantsservice "github.com/luminapos/lumina-saas/domains/tenants/be/service"
	"github.com/luminapos/lumina-saas/platform/go/couch"
	"github.com/luminapos/lumina-saas/platform/go/persistence"
)

type storeFlags struct {
	databaseURL        string
	couchURL           string
	couchAdminUser     string
	couchAdminPassword string
	archiveDir         string
}

func (f *storeFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&f.couchURL, "couch-url", "", "Document store base URL")
	c.Flags().StringVar(&f.couchAdminUser, "couch-admin-user", "", "Document store admin user")
	c.Flags().StringVar(&f.couchAdminPassword, "couch-admin-password", "", "Document store admin password")
	c.Flags().StringVar(&f.archiveDir, "archive-dir", "./.data/backups", "Local archive directory")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("couch-url")
	_ = c.MarkFlagRequired("couch-admin-user")
	_ = c.MarkFlagRequired("couch-admin-password")
}

// buildService wires the backup engine against a local archive directory.
// GCS-backed archives are an API-server concern; the CLI stays on disk.
func (f *storeFlags) buildService(ctx context.Context) (*service.Service, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}
	cleanup := func() { persistence.ClosePool(pool) }

	companyStore, err := persistence.NewCompanyStore(ctx, pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init company store: %w", err)
	}
	backupStore, err := persistence.NewBackupStore(ctx, pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init backup store: %w", err)
	}

	client, err := couch.New(couch.Config{
		BaseURL:       f.couchURL,
		AdminUser:     f.couchAdminUser,
		AdminPassword: f.couchAdminPassword,
		Timeout:       5 * time.Minute,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init document store client: %w", err)
	}

	archives, err := archivestore.NewLocal(f.archiveDir)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init archive store: %w", err)
	}

	companyRepo := tenantsrepo.NewPostgresRepository(companyStore)
	svc := service.New(service.Config{
		Repo:     repo.NewPostgresRepository(backupStore),
		Store:    client,
		Archives: archives,
		Resolver: service.ResolverFunc(func(ctx context.Context, databaseName string) (*uuid.UUID, error) {
			t, err := companyRepo.FindByDatabaseName(ctx, databaseName)
			if errors.Is(err, tenantsservice.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return &t.ID, nil
		}),
	})

	return svc, cleanup, nil
}

// Command groups backup and restore helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup utilities (create/sweep/restore/list)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(sweepCommand())
	cmd.AddCommand(restoreCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var flags storeFlags
	var database string
	var description string

	c := &cobra.Command{
		Use:   "create",
		Short: "Snapshot one database into a new archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := svc.BackupOne(ctx, database, description)
			if err != nil {
				return fmt.Errorf("backup %s: %w", database, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup complete: %s -> %s (id %s)\n",
				b.DatabaseName, b.Path, b.ID)
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&database, "database", "", "Database name to snapshot")
	c.Flags().StringVar(&description, "description", "", "Manifest description")
	_ = c.MarkFlagRequired("database")

	return c
}

func sweepCommand() *cobra.Command {
	var flags storeFlags
	var description string

	c := &cobra.Command{
		Use:   "sweep",
		Short: "Snapshot every database known to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.BackupAll(ctx, description)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			for _, b := range result.Succeeded {
				fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\t%s\n", b.DatabaseName, b.Path)
			}
			for _, f := range result.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "failed\t%s\t%s\n", f.DatabaseName, f.Reason)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d databases failed",
					len(result.Failed), len(result.Failed)+len(result.Succeeded))
			}
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&description, "description", "", "Manifest description")

	return c
}

func restoreCommand() *cobra.Command {
	var flags storeFlags
	var backupID string

	c := &cobra.Command{
		Use:   "restore",
		Short: "Rebuild a database from a manifest entry (destructive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(backupID)
			if err != nil {
				return fmt.Errorf("parse backup id: %w", err)
			}

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := svc.Restore(ctx, id)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %s from %s\n", b.DatabaseName, b.Path)
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&backupID, "backup-id", "", "Manifest entry id to restore")
	_ = c.MarkFlagRequired("backup-id")

	return c
}

func listCommand() *cobra.Command {
	var flags storeFlags

	c := &cobra.Command{
		Use:   "list",
		Short: "List manifest entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			items, err := svc.List(ctx, nil)
			if err != nil {
				return fmt.Errorf("list backups: %w", err)
			}

			for _, b := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					b.ID, b.DatabaseName, b.CreatedAt.Format(time.RFC3339), b.Path)
			}
			return nil
		},
	}

	flags.register(c)
	return c
}
