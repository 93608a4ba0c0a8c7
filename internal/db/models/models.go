package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the local row backing a Clerk identity. It is created on the first
// successful identity lookup and refreshed by explicit sync; this service
// never deletes users (the host application owns the user store).
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            string      `bun:"id,pk,type:uuid"`
	ClerkID       string      `bun:"clerk_id,notnull,unique"`
	Email         string      `bun:"email"`
	Name          string      `bun:"name"`
	ClerkMetadata MetadataMap `bun:"clerk_metadata,type:jsonb,notnull,default:'{}'"`
	CreatedAt     time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// Permissions returns the user's global permission list from synced metadata.
// These are independent of any organization-scoped membership permissions.
func (u *User) Permissions() StringList {
	if u == nil || u.ClerkMetadata == nil {
		return StringList{}
	}
	raw, ok := u.ClerkMetadata["permissions"]
	if !ok {
		return StringList{}
	}
	switch v := raw.(type) {
	case StringList:
		return v
	case []string:
		return StringList(v)
	case []any:
		perms := make(StringList, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				perms = append(perms, s)
			}
		}
		return perms
	default:
		return StringList{}
	}
}

// Organization mirrors a Clerk organization. The slug is the external-facing
// lookup key (route parameter); the Clerk ID binds it to the provider.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:o"`

	ID            string      `bun:"id,pk,type:uuid"`
	ClerkID       string      `bun:"clerk_id,notnull,unique"`
	Name          string      `bun:"name,notnull"`
	Slug          string      `bun:"slug,notnull,unique"`
	ClerkMetadata MetadataMap `bun:"clerk_metadata,type:jsonb,notnull,default:'{}'"`
	CreatedAt     time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// MembershipStatus enumerates the lifecycle states of a membership.
type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusPending MembershipStatus = "pending"
)

// Membership is the join row associating one user with one organization,
// unique per (organization, user) pair. Its permission list is an
// organization-scoped override, independent of the user's global permissions;
// there is no inheritance between the two.
type Membership struct {
	bun.BaseModel `bun:"table:organization_users,alias:ou"`

	ID             string           `bun:"id,pk,type:uuid"`
	OrganizationID string           `bun:"organization_id,notnull,type:uuid"` // FK to organizations(id)
	UserID         string           `bun:"user_id,notnull,type:uuid"`         // FK to users(id)
	Role           *string          `bun:"role"`
	Permissions    StringList       `bun:"permissions,type:jsonb,notnull,default:'[]'"`
	IsOwner        bool             `bun:"is_owner,notnull,default:false"`
	Title          *string          `bun:"title"`
	Status         MembershipStatus `bun:"status,notnull,default:'active'"`
	CreatedAt      time.Time        `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time        `bun:"updated_at,notnull,default:current_timestamp"`

	User *User `bun:"rel:belongs-to,join:user_id=id"`
}

// HasPermission reports whether the membership grants the given
// organization-scoped permission.
func (m *Membership) HasPermission(permission string) bool {
	if m == nil {
		return false
	}
	return m.Permissions.Contains(permission)
}

// IsActive reports whether the membership is in the active state.
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == MembershipStatusActive
}
