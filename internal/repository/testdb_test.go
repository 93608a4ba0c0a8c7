package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/agencyhq/agencyapi/internal/db/bunx"
	"github.com/agencyhq/agencyapi/internal/db/models"
	"github.com/agencyhq/agencyapi/internal/migrations"
)

// setupTestDB creates an in-memory SQLite database with the real schema applied
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	// A uniquely named shared-cache memory DB keeps each test isolated while
	// surviving connection churn in the pool.
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := bunx.NewDB(dsn, 0)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("init migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return db
}

// seedUser inserts a user row and returns it
func seedUser(t *testing.T, db *bun.DB, clerkID string) *models.User {
	t.Helper()

	user := &models.User{
		ClerkID: clerkID,
		Email:   clerkID + "@example.com",
		Name:    "User " + clerkID,
	}
	if err := NewBunUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", clerkID, err)
	}
	return user
}

// seedOrg inserts an organization row and returns it
func seedOrg(t *testing.T, db *bun.DB, slug string) *models.Organization {
	t.Helper()

	org := &models.Organization{
		ClerkID: "org_" + slug,
		Name:    slug,
		Slug:    slug,
	}
	if err := NewBunOrganizationRepository(db).Create(context.Background(), org); err != nil {
		t.Fatalf("seed org %s: %v", slug, err)
	}
	return org
}

func strPtr(s string) *string                                 { return &s }
func boolPtr(b bool) *bool                                    { return &b }
func statusPtr(s models.MembershipStatus) *models.MembershipStatus { return &s }
