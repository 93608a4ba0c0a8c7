package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/agencyhq/agencyapi/internal/db/bunx"
	"github.com/agencyhq/agencyapi/internal/migrations"
)

var (
	setupForce   bool
	setupSkipEnv bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Validate Clerk credentials and prepare the database",
	Long: `Checks the configured Clerk keys (CLERK_SECRET_KEY must start with "sk_",
CLERK_PUBLISHABLE_KEY with "pk_"), then initializes the migration tables and
applies all pending migrations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !setupSkipEnv {
			if err := cfg.Clerk.RequireKeys(); err != nil {
				if !setupForce {
					return err
				}
				log.Printf("Warning: %v (continuing due to --force)", err)
			}
			// Malformed keys are never acceptable: a key with the wrong
			// prefix will fail every provider call at request time.
			if err := cfg.Clerk.ValidateKeyFormats(); err != nil {
				return err
			}
			log.Printf("Clerk credentials validated")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		migrator := migrate.NewMigrator(db, migrations.Migrations)

		ctx := context.Background()
		if err := migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrator: %w", err)
		}

		group, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if group.ID == 0 {
			log.Printf("Database already up to date")
		} else {
			log.Printf("Applied migration group %d", group.ID)
		}

		log.Printf("Setup complete")
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "Continue setup even when Clerk keys are missing")
	setupCmd.Flags().BoolVar(&setupSkipEnv, "skip-env", false, "Skip Clerk credential validation")
	rootCmd.AddCommand(setupCmd)
}
