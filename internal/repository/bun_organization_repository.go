package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/agencyhq/agencyapi/internal/db/bunx"
	"github.com/agencyhq/agencyapi/internal/db/models"
)

// BunOrganizationRepository implements OrganizationRepository using Bun ORM
type BunOrganizationRepository struct {
	db *bun.DB
}

// NewBunOrganizationRepository creates a new Bun-based organization repository
func NewBunOrganizationRepository(db *bun.DB) *BunOrganizationRepository {
	return &BunOrganizationRepository{db: db}
}

// Create inserts a new organization into the database
func (r *BunOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if org.ID == "" {
		org.ID = bunx.NewUUIDv7()
	}
	if org.ClerkMetadata == nil {
		org.ClerkMetadata = models.MetadataMap{}
	}
	_, err := r.db.NewInsert().
		Model(org).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by its ID
func (r *BunOrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := new(models.Organization)
	err := r.db.NewSelect().
		Model(org).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get organization by ID: %w", err)
	}
	return org, nil
}

// GetBySlug retrieves an organization by its slug, the external lookup key
func (r *BunOrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	org := new(models.Organization)
	err := r.db.NewSelect().
		Model(org).
		Where("slug = ?", slug).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization with slug %s: %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return org, nil
}

// GetByClerkID retrieves an organization by its Clerk identity ID
func (r *BunOrganizationRepository) GetByClerkID(ctx context.Context, clerkID string) (*models.Organization, error) {
	org := new(models.Organization)
	err := r.db.NewSelect().
		Model(org).
		Where("clerk_id = ?", clerkID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization with clerk_id %s: %w", clerkID, ErrNotFound)
		}
		return nil, fmt.Errorf("get organization by clerk ID: %w", err)
	}
	return org, nil
}

// Update updates an existing organization
func (r *BunOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(org).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("organization %s: %w", org.ID, ErrNotFound)
	}

	return nil
}

// List retrieves all organizations
func (r *BunOrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.NewSelect().
		Model(&orgs).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}
