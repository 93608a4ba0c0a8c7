package repository

import (
	"context"
	"errors"

	"github.com/agencyhq/agencyapi/internal/db/models"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("not found")

// UserRepository exposes persistence operations for local user rows.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
}

// OrganizationRepository exposes persistence operations for organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetByClerkID(ctx context.Context, clerkID string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	List(ctx context.Context) ([]models.Organization, error)
}

// MembershipPatch describes a partial update of a membership row.
// Nil fields are left unchanged.
type MembershipPatch struct {
	Role        *string                  `mapstructure:"role"`
	Permissions *models.StringList       `mapstructure:"permissions"`
	IsOwner     *bool                    `mapstructure:"is_owner"`
	Title       *string                  `mapstructure:"title"`
	Status      *models.MembershipStatus `mapstructure:"status"`
}

// MembershipRepository exposes persistence operations for the
// user-organization join table.
type MembershipRepository interface {
	// Upsert inserts the membership or, when the (organization, user) pair
	// already exists, overwrites its attributes.
	Upsert(ctx context.Context, membership *models.Membership) error

	// Get returns the membership for the pair, or ErrNotFound.
	Get(ctx context.Context, orgID, userID string) (*models.Membership, error)

	// Delete removes the membership. Deleting an absent row is a no-op.
	Delete(ctx context.Context, orgID, userID string) error

	// UpdateAttrs applies a partial update. Silently does nothing when no
	// matching row exists; callers that care must Get first.
	UpdateAttrs(ctx context.Context, orgID, userID string, patch MembershipPatch) error

	// Query operations, all scoped to one organization
	ListByStatus(ctx context.Context, orgID string, status models.MembershipStatus) ([]models.Membership, error)
	ListOwners(ctx context.Context, orgID string) ([]models.Membership, error)
	ListByRole(ctx context.Context, orgID, role string) ([]models.Membership, error)
	CountByRole(ctx context.Context, orgID, role string) (int, error)
	CountByStatus(ctx context.Context, orgID string, status models.MembershipStatus) (int, error)
}
