package companycmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/luminapos/lumina-saas/domains/tenants/be/provisioning"
	"github.com/luminapos/lumina-saas/domains/tenants/be/repo"
	"github.com/luminapos/lumina-saas/domains/tenants/be/service"
	"github.com/luminapos/lumina-saas/platform/go/couch"
	"github.com/luminapos/lumina-saas/platform/go/persistence"
)

// storeFlags are the connection settings shared by every company subcommand.
type storeFlags struct {
	databaseURL        string
	couchURL           string
	couchAdminUser     string
	couchAdminPassword string
}

func (f *storeFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&f.couchURL, "couch-url", "", "Document store base URL")
	c.Flags().StringVar(&f.couchAdminUser, "couch-admin-user", "", "Document store admin user")
	c.Flags().StringVar(&f.couchAdminPassword, "couch-admin-password", "", "Document store admin password")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("couch-url")
	_ = c.MarkFlagRequired("couch-admin-user")
	_ = c.MarkFlagRequired("couch-admin-password")
}

// buildService wires a company service straight against the infrastructure,
// bypassing the HTTP API. The caller must close the pool.
func (f *storeFlags) buildService(ctx context.Context) (*service.Service, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	companyStore, err := persistence.NewCompanyStore(ctx, pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init company store: %w", err)
	}

	client, err := couch.New(couch.Config{
		BaseURL:       f.couchURL,
		AdminUser:     f.couchAdminUser,
		AdminPassword: f.couchAdminPassword,
		Timeout:       time.Minute,
	})
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init document store client: %w", err)
	}

	companyRepo := repo.NewPostgresRepository(companyStore)
	seeder := provisioning.NewSeeder(client)
	svc := service.New(companyRepo, client, seeder, nil, nil)

	return svc, func() { persistence.ClosePool(pool) }, nil
}

// Command groups company-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Company utilities (provision/list/deprovision)",
	}

	cmd.AddCommand(provisionCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(deprovisionCommand())
	return cmd
}

func provisionCommand() *cobra.Command {
	var flags storeFlags
	var name string
	var deploymentType string

	c := &cobra.Command{
		Use:   "provision",
		Short: "Register a company and provision its hosted database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.Provision(ctx, service.CreateInput{
				Name:           name,
				DeploymentType: service.DeploymentType(deploymentType),
			})
			if err != nil {
				return fmt.Errorf("provision company: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Company provisioned: %s (%s) database=%s\n",
				t.Name, t.ID, t.DatabaseName)
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&name, "name", "", "Company display name")
	c.Flags().StringVar(&deploymentType, "deployment-type", string(service.DeploymentHosted), "Deployment type (hosted or on_premise)")
	_ = c.MarkFlagRequired("name")

	return c
}

func listCommand() *cobra.Command {
	var flags storeFlags

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			items, err := svc.List(ctx)
			if err != nil {
				return fmt.Errorf("list companies: %w", err)
			}

			for _, t := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tprovisioned=%t\n",
					t.ID, t.Name, t.DeploymentType, t.Provisioned)
			}
			return nil
		},
	}

	flags.register(c)
	return c
}

func deprovisionCommand() *cobra.Command {
	var flags storeFlags
	var companyID string

	c := &cobra.Command{
		Use:   "deprovision",
		Short: "Delete a company's hosted database and registry record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(companyID)
			if err != nil {
				return fmt.Errorf("parse company id: %w", err)
			}

			svc, cleanup, err := flags.buildService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Deprovision(ctx, id); err != nil {
				return fmt.Errorf("deprovision company: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Company deprovisioned: %s\n", id)
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&companyID, "company-id", "", "Company id to deprovision")
	_ = c.MarkFlagRequired("company-id")

	return c
}
