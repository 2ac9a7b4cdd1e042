package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kenko/clinic-api/config"
	"github.com/kenko/clinic-api/internal/migrate"
	"github.com/kenko/clinic-api/internal/repository/postgres"
)

const migrateTimeout = 2 * time.Minute

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg *config.Config) error {
				db, err := postgres.NewDB(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				version, err := migrate.Migrate(ctx, db)
				if err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				cmd.Printf("schema at version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and available schema versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg *config.Config) error {
				db, err := postgres.NewDB(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()

				current, err := migrate.CurrentVersion(ctx, db)
				if err != nil {
					return err
				}
				migrations, err := migrate.Migrations()
				if err != nil {
					return err
				}
				for _, m := range migrations {
					state := "pending"
					if m.Version <= current {
						state = "applied"
					}
					cmd.Printf("%04d  %-8s %s\n", m.Version, state, m.Name)
				}
				return nil
			})
		},
	})

	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("migrations need the postgres storage driver, got %q", cfg.Storage.Driver)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()
	return fn(ctx, cfg)
}
