package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/agencyhq/agencyapi/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260810000001, down_20260810000001)
}

// up_20260810000001 creates the users, organizations, and organization_users tables
func up_20260810000001(ctx context.Context, db *bun.DB) error {
	// 1. Create users table
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_clerk_id ON users(clerk_id)`)
	if err != nil {
		return fmt.Errorf("failed to create users clerk_id index: %w", err)
	}
	fmt.Println(" OK")

	// 2. Create organizations table
	fmt.Print(" [up] creating organizations table...")
	_, err = db.NewCreateTable().
		Model((*models.Organization)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create organizations table: %w", err)
	}

	// Slug is the external-facing lookup key
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug)`)
	if err != nil {
		return fmt.Errorf("failed to create organizations slug index: %w", err)
	}
	fmt.Println(" OK")

	// 3. Create organization_users join table
	// FKs are declared inline so the same migration runs on SQLite,
	// which has no ALTER TABLE ... ADD CONSTRAINT.
	fmt.Print(" [up] creating organization_users table...")
	_, err = db.NewCreateTable().
		Model((*models.Membership)(nil)).
		IfNotExists().
		ForeignKey(`("organization_id") REFERENCES "organizations" ("id") ON DELETE CASCADE`).
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create organization_users table: %w", err)
	}

	// One membership row per (organization, user) pair; upserts key off this
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_org_users_pair ON organization_users(organization_id, user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create organization_users pair index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_org_users_status ON organization_users(organization_id, status)`)
	if err != nil {
		return fmt.Errorf("failed to create organization_users status index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_org_users_role ON organization_users(organization_id, role)`)
	if err != nil {
		return fmt.Errorf("failed to create organization_users role index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260810000001 drops the agency tables in dependency order
func down_20260810000001(ctx context.Context, db *bun.DB) error {
	for _, table := range []string{"organization_users", "organizations", "users"} {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
