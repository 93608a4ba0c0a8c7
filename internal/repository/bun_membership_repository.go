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

// BunMembershipRepository implements MembershipRepository using Bun ORM
type BunMembershipRepository struct {
	db *bun.DB
}

// NewBunMembershipRepository creates a new Bun-based membership repository
func NewBunMembershipRepository(db *bun.DB) *BunMembershipRepository {
	return &BunMembershipRepository{db: db}
}

// Upsert inserts the membership row, overwriting attributes when the
// (organization, user) pair already exists.
func (r *BunMembershipRepository) Upsert(ctx context.Context, membership *models.Membership) error {
	if membership.OrganizationID == "" || membership.UserID == "" {
		return fmt.Errorf("organization_id and user_id are required")
	}
	if membership.ID == "" {
		membership.ID = bunx.NewUUIDv7()
	}
	if membership.Permissions == nil {
		membership.Permissions = models.StringList{}
	}
	if membership.Status == "" {
		membership.Status = models.MembershipStatusActive
	}

	_, err := r.db.NewInsert().
		Model(membership).
		On("CONFLICT (organization_id, user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("permissions = EXCLUDED.permissions").
		Set("is_owner = EXCLUDED.is_owner").
		Set("title = EXCLUDED.title").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// Get returns the membership for the (organization, user) pair
func (r *BunMembershipRepository) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	membership := new(models.Membership)
	err := r.db.NewSelect().
		Model(membership).
		Where("organization_id = ?", orgID).
		Where("ou.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership for user %s in organization %s: %w", userID, orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

// Delete removes the membership row. Absent rows are a no-op, not an error.
func (r *BunMembershipRepository) Delete(ctx context.Context, orgID, userID string) error {
	_, err := r.db.NewDelete().
		Model((*models.Membership)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// UpdateAttrs applies a partial update to an existing membership. When no row
// matches, nothing happens and no error is returned.
func (r *BunMembershipRepository) UpdateAttrs(ctx context.Context, orgID, userID string, patch MembershipPatch) error {
	query := r.db.NewUpdate().
		Model((*models.Membership)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID)

	changed := false
	if patch.Role != nil {
		query = query.Set("role = ?", *patch.Role)
		changed = true
	}
	if patch.Permissions != nil {
		query = query.Set("permissions = ?", *patch.Permissions)
		changed = true
	}
	if patch.IsOwner != nil {
		query = query.Set("is_owner = ?", *patch.IsOwner)
		changed = true
	}
	if patch.Title != nil {
		query = query.Set("title = ?", *patch.Title)
		changed = true
	}
	if patch.Status != nil {
		query = query.Set("status = ?", *patch.Status)
		changed = true
	}
	if !changed {
		return nil
	}

	query = query.Set("updated_at = ?", time.Now())
	if _, err := query.Exec(ctx); err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return nil
}

// ListByStatus returns the organization's memberships in the given status
func (r *BunMembershipRepository) ListByStatus(ctx context.Context, orgID string, status models.MembershipStatus) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.NewSelect().
		Model(&memberships).
		Relation("User").
		Where("organization_id = ?", orgID).
		Where("status = ?", status).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memberships by status: %w", err)
	}
	return memberships, nil
}

// ListOwners returns the organization's owner memberships
func (r *BunMembershipRepository) ListOwners(ctx context.Context, orgID string) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.NewSelect().
		Model(&memberships).
		Relation("User").
		Where("organization_id = ?", orgID).
		Where("is_owner = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return memberships, nil
}

// ListByRole returns the organization's memberships with the given role
func (r *BunMembershipRepository) ListByRole(ctx context.Context, orgID, role string) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.NewSelect().
		Model(&memberships).
		Relation("User").
		Where("organization_id = ?", orgID).
		Where("role = ?", role).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memberships by role: %w", err)
	}
	return memberships, nil
}

// CountByRole counts the organization's memberships with the given role
func (r *BunMembershipRepository) CountByRole(ctx context.Context, orgID, role string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.Membership)(nil)).
		Where("organization_id = ?", orgID).
		Where("role = ?", role).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count memberships by role: %w", err)
	}
	return count, nil
}

// CountByStatus counts the organization's memberships in the given status
func (r *BunMembershipRepository) CountByStatus(ctx context.Context, orgID string, status models.MembershipStatus) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.Membership)(nil)).
		Where("organization_id = ?", orgID).
		Where("status = ?", status).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count memberships by status: %w", err)
	}
	return count, nil
}
