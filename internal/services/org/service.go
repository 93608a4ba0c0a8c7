package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/agencyhq/agencyapi/internal/db/models"
	"github.com/agencyhq/agencyapi/internal/repository"
)

// MemberAttrs are the attributes applied when adding a member to an
// organization. The zero value yields the defaults: no role, no permissions,
// not an owner, no title, active status.
type MemberAttrs struct {
	Role        *string                 `mapstructure:"role"`
	Permissions []string                `mapstructure:"permissions"`
	IsOwner     bool                    `mapstructure:"is_owner"`
	Title       *string                 `mapstructure:"title"`
	Status      models.MembershipStatus `mapstructure:"status"`
}

// Service implements organization membership operations over the
// membership and organization repositories.
type Service struct {
	orgs        repository.OrganizationRepository
	memberships repository.MembershipRepository
}

// NewService creates an organization membership service
func NewService(orgs repository.OrganizationRepository, memberships repository.MembershipRepository) *Service {
	return &Service{orgs: orgs, memberships: memberships}
}

// GetBySlug resolves an organization by its external-facing slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return s.orgs.GetBySlug(ctx, slug)
}

// AddMember adds a user to the organization. Adding a user who is already a
// member overwrites the membership attributes (upsert on the unique pair).
func (s *Service) AddMember(ctx context.Context, orgID, userID string, attrs MemberAttrs) error {
	status := attrs.Status
	if status == "" {
		status = models.MembershipStatusActive
	}
	permissions := models.StringList(attrs.Permissions)
	if permissions == nil {
		permissions = models.StringList{}
	}

	membership := &models.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           attrs.Role,
		Permissions:    permissions,
		IsOwner:        attrs.IsOwner,
		Title:          attrs.Title,
		Status:         status,
	}
	if err := s.memberships.Upsert(ctx, membership); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from the organization. Removing a user who is
// not a member is a no-op.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID string) error {
	return s.memberships.Delete(ctx, orgID, userID)
}

// UpdateMember applies a partial attribute update to an existing membership.
// When the user is not a member, nothing happens; callers that need to
// distinguish that case should check GetMember first.
func (s *Service) UpdateMember(ctx context.Context, orgID, userID string, patch repository.MembershipPatch) error {
	return s.memberships.UpdateAttrs(ctx, orgID, userID, patch)
}

// GetMember returns the membership row for the user, or nil when the user is
// not a member.
func (s *Service) GetMember(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	membership, err := s.memberships.Get(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return membership, nil
}

// GetMemberRole returns the member's role, or nil for non-members and
// members without a role.
func (s *Service) GetMemberRole(ctx context.Context, orgID, userID string) (*string, error) {
	membership, err := s.GetMember(ctx, orgID, userID)
	if err != nil || membership == nil {
		return nil, err
	}
	return membership.Role, nil
}

// GetMemberPermissions returns the member's organization-scoped permission
// list; non-members get an empty list.
func (s *Service) GetMemberPermissions(ctx context.Context, orgID, userID string) (models.StringList, error) {
	membership, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return models.StringList{}, nil
	}
	return membership.Permissions, nil
}

// UserHasPermission checks the membership's own permission list. It is
// independent of the user's global permission metadata: organization
// permissions are overrides, not inherited.
func (s *Service) UserHasPermission(ctx context.Context, orgID, userID, permission string) (bool, error) {
	membership, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	return membership.HasPermission(permission), nil
}

// IsOwner reports whether the user is an owner of the organization.
func (s *Service) IsOwner(ctx context.Context, orgID, userID string) (bool, error) {
	membership, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	return membership != nil && membership.IsOwner, nil
}

// IsActiveMember reports whether the user is an active member.
func (s *Service) IsActiveMember(ctx context.Context, orgID, userID string) (bool, error) {
	membership, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	return membership.IsActive(), nil
}

// ActiveMembers returns all active memberships of the organization.
func (s *Service) ActiveMembers(ctx context.Context, orgID string) ([]models.Membership, error) {
	return s.memberships.ListByStatus(ctx, orgID, models.MembershipStatusActive)
}

// PendingMembers returns all pending memberships of the organization.
func (s *Service) PendingMembers(ctx context.Context, orgID string) ([]models.Membership, error) {
	return s.memberships.ListByStatus(ctx, orgID, models.MembershipStatusPending)
}

// Owners returns the organization's owner memberships.
func (s *Service) Owners(ctx context.Context, orgID string) ([]models.Membership, error) {
	return s.memberships.ListOwners(ctx, orgID)
}

// MembersByRole returns the organization's memberships with the given role.
func (s *Service) MembersByRole(ctx context.Context, orgID, role string) ([]models.Membership, error) {
	return s.memberships.ListByRole(ctx, orgID, role)
}

// MemberCountByRole counts memberships with the given role.
func (s *Service) MemberCountByRole(ctx context.Context, orgID, role string) (int, error) {
	return s.memberships.CountByRole(ctx, orgID, role)
}

// ActiveMemberCount counts the organization's active memberships.
func (s *Service) ActiveMemberCount(ctx context.Context, orgID string) (int, error) {
	return s.memberships.CountByStatus(ctx, orgID, models.MembershipStatusActive)
}

// SyncMetadata shallow-merges patch into the organization's metadata blob,
// last-write-wins per key, and persists the result.
func (s *Service) SyncMetadata(ctx context.Context, orgID string, patch models.MetadataMap) error {
	organization, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}

	organization.ClerkMetadata = organization.ClerkMetadata.Merge(patch)
	if err := s.orgs.Update(ctx, organization); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	return nil
}
